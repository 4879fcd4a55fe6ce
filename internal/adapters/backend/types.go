package backend

import "github.com/okian/presence/internal/domain/model"

// RecognizedUser is the matched identity in a verdict.
type RecognizedUser struct {
	UserID     string  `json:"user_id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
	Confidence float64 `json:"confidence,omitempty"`
}

// LocationCheck is the server's geofence verdict.
type LocationCheck struct {
	Verified bool   `json:"verified"`
	Message  string `json:"message"`
}

// Verdict is the decoded response of POST /attendance.
type Verdict struct {
	Success        bool            `json:"success"`
	RecognizedUser *RecognizedUser `json:"recognized_user,omitempty"`
	Location       *LocationCheck  `json:"location,omitempty"`
	Message        string          `json:"message,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// wireVerdict detects a missing success field, which makes a body malformed.
type wireVerdict struct {
	Success        *bool           `json:"success"`
	RecognizedUser *RecognizedUser `json:"recognized_user"`
	Location       *LocationCheck  `json:"location"`
	Message        string          `json:"message"`
	Error          string          `json:"error"`
}

// Record is one attendance record.
type Record = model.AttendanceRecord

// LocationSettings is the server's geofence configuration.
type LocationSettings struct {
	Enabled      bool    `json:"enabled" yaml:"enabled"`
	Latitude     float64 `json:"latitude" yaml:"latitude"`
	Longitude    float64 `json:"longitude" yaml:"longitude"`
	Radius       int     `json:"radius" yaml:"radius"`
	LocationName string  `json:"location_name" yaml:"location_name"`
}

// LocationTest is the result of checking coordinates against the geofence.
type LocationTest struct {
	Valid     bool    `json:"valid" yaml:"valid"`
	Distance  float64 `json:"distance" yaml:"distance"`
	MaxRadius int     `json:"max_radius" yaml:"max_radius"`
	Message   string  `json:"message" yaml:"message"`
}

// Registration is the enrolment form sent with a registration still.
type Registration struct {
	Name     string
	UserID   string
	Password string
}

// Registered is the server's confirmation of an enrolment.
type Registered struct {
	UserID       string `json:"user_id" yaml:"user_id"`
	Name         string `json:"name" yaml:"name"`
	RegisteredAt string `json:"registered_at" yaml:"registered_at"`
}

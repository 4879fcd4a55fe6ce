// Package model contains domain models passed between layers.
package model

import "time"

// OutcomeEvent is published for every outcome the session shows, so that
// background consumers (records refresh) can react without touching the
// session itself.
type OutcomeEvent struct {
	EventID   string    // unique id (uuid) for log correlation
	SessionID string    // session that produced the outcome
	Outcome   Outcome   // the outcome as shown
	TS        time.Time // when it was shown
}

// AttendanceRecord is one attendance entry as recorded by the backend.
type AttendanceRecord struct {
	UserID           string  `json:"user_id" yaml:"user_id"`
	Name             string  `json:"name,omitempty" yaml:"name,omitempty"`
	Timestamp        string  `json:"timestamp" yaml:"timestamp"`
	Similarity       float64 `json:"similarity" yaml:"similarity"`
	Status           string  `json:"status" yaml:"status"`
	LocationVerified *bool   `json:"location_verified,omitempty" yaml:"location_verified,omitempty"`
	LocationMessage  string  `json:"location_message,omitempty" yaml:"location_message,omitempty"`
}

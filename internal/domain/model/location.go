package model

import "time"

// LocationFix is a single geolocation reading.
type LocationFix struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy_m,omitempty"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Location is the location input of an attempt: either a fix or an explicit
// skip. A skip is not an error; the backend decides whether location matters.
type Location struct {
	Fix        *LocationFix `json:"fix,omitempty"`
	Skipped    bool         `json:"skipped"`
	SkipReason FailureKind  `json:"skip_reason,omitempty"`
}

// Fixed wraps a fix.
func Fixed(f LocationFix) Location { return Location{Fix: &f} }

// Skipped records that the attempt proceeds without location.
func Skipped(reason FailureKind) Location { return Location{Skipped: true, SkipReason: reason} }

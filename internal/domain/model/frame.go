package model

import "time"

// CapturedFrame is one encoded still taken from the camera. It belongs to a
// single attempt and is dropped once submitted.
type CapturedFrame struct {
	Data       []byte
	MimeType   string
	Width      int
	Height     int
	CapturedAt time.Time
}

// Size returns the encoded payload size in bytes.
func (f CapturedFrame) Size() int { return len(f.Data) }

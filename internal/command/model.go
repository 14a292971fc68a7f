package command

import "time"

// Log records one processed command, successful or not.
type Log struct {
	ID           string    `json:"id"`
	UserID       string    `json:"-"`
	RawText      string    `json:"raw_text"`
	Action       string    `json:"action"`
	DeviceType   string    `json:"device_type"`
	Location     string    `json:"location"`
	Value        *float64  `json:"value,omitempty"`
	Success      bool      `json:"success"`
	Response     string    `json:"response"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ProcessingMS int64     `json:"processing_time_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

package domain

import "time"

// ConnectionStatus describes which Sample Source variant is active and how it
// was configured. It is written once at startup and read by status queries.
type ConnectionStatus struct {
	Simulating   bool          `json:"simulating"`
	ComPort      string        `json:"com_port"`
	BaudRate     int           `json:"baudrate"`
	PollInterval time.Duration `json:"-"`
	Reason       string        `json:"reason,omitempty"`
}

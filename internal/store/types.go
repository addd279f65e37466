package store

import "time"

// DeployRecord captures the result of one deployment attempt.
type DeployRecord struct {
	AttemptID   string    `json:"attempt_id"`
	Device      string    `json:"device"`
	DeviceName  string    `json:"device_name,omitempty"`
	Destination string    `json:"destination"`
	Profile     string    `json:"profile"`
	Timestamp   time.Time `json:"timestamp"`
	Success     bool      `json:"success"`
	Stage       string    `json:"stage"`
	Reason      string    `json:"reason,omitempty"`
	Error       string    `json:"error,omitempty"`
	Duration    string    `json:"duration"`
	Archs       []string  `json:"archs,omitempty"`
	AppPath     string    `json:"app_path,omitempty"`
	ExitCode    int       `json:"exit_code"`
}

// RelayLog tracks one log relay session and where its output was saved.
type RelayLog struct {
	AttemptID string    `json:"attempt_id,omitempty"`
	Port      int       `json:"port"`
	Timestamp time.Time `json:"timestamp"`
	LogFile   string    `json:"log_file"`
	Sessions  int       `json:"sessions"`
	Bytes     int64     `json:"bytes"`
}

package model

import "time"

// LogEntry represents a single forwarded log message.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Job       string    `json:"job"`     // group/index key
	Group     string    `json:"group"`   // job group (process) name
	Index     int       `json:"index"`   // job index within the group
	Level     string    `json:"level"`   // DEBUG, INFO, WARNING, ERROR, CRITICAL
	Message   string    `json:"message"` // captured message, or the raw line when unmatched
	Raw       string    `json:"raw"`     // line as read from the job log
	Matched   bool      `json:"matched"` // false when the line did not match the pattern
}

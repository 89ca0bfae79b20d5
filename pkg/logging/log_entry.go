package logging

// LogEntry represents a structured log record with fields particularly
// relevant to browser task execution.
type LogEntry struct {
	// Standard fields
	Time     int64
	Severity Severity
	Message  string
	File     string
	Line     int
	Function string

	// Execution-specific fields
	TaskID   string // The task being executed
	RunID    string // The individual execution run
	Strategy string // The resolution strategy currently attempting the task

	// General structured data
	Fields map[string]interface{}
}

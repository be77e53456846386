package storage

import "time"

// Status is the lifecycle state of an execution record.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusRunning   Status = "Running"
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
	StatusTimedOut  Status = "TimedOut"
	// StatusMemoryLimitExceeded is reserved for sandbox backends that report
	// memory kills distinctly from generic failure. Piston does not, so no
	// gateway mapping produces it today.
	StatusMemoryLimitExceeded Status = "MemoryLimitExceeded"
)

// IsTerminal reports whether no further mutation of a record is allowed.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut, StatusMemoryLimitExceeded:
		return true
	}
	return false
}

// ExecutionRecord is the durable row tracking one submission's lifecycle.
// The JSON field names are the wire contract with the existing web client.
type ExecutionRecord struct {
	ID               string    `json:"id" db:"id"`
	Code             string    `json:"code" db:"code"`
	Language         string    `json:"language" db:"language"`
	SubmitterID      string    `json:"submitterId,omitempty" db:"submitter_id"`
	Status           Status    `json:"status" db:"status"`
	Output           string    `json:"output" db:"output"`
	ErrorOutput      string    `json:"errorOutput" db:"error_output"`
	ExecutionTimeMs  int64     `json:"executionTimeMs" db:"execution_time_ms"`
	MemoryUsageBytes int64     `json:"memoryUsageBytes" db:"memory_usage_bytes"`
	SandboxLanguage  string    `json:"sandboxLanguage,omitempty" db:"sandbox_language"`
	SandboxVersion   string    `json:"sandboxVersion,omitempty" db:"sandbox_version"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}

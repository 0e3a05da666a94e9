package app

import "time"

// Operation tracks one CLI command run. Its ID tags every log line the run
// writes, and the outcome is logged when the app closes.
type Operation struct {
	ID         string
	Name       string
	Parameters string
	Status     string // "success" or "error"
	StartedAt  time.Time
}

// NewOperation creates an operation that starts out successful.
func NewOperation(name, parameters string, startedAt time.Time) *Operation {
	return &Operation{
		ID:         startedAt.UTC().Format("20060102T150405Z"),
		Name:       name,
		Parameters: parameters,
		Status:     "success",
		StartedAt:  startedAt,
	}
}

// Fail marks the operation as failed when err is non-nil and returns err.
func (op *Operation) Fail(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}

// Failed returns true if any step of the operation failed.
func (op *Operation) Failed() bool {
	return op.Status == "error"
}

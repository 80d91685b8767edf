package remoteparse

import (
	"fmt"
	"time"
)

// SubmitError wraps an upload or authentication failure. It is terminal
// for the remote stage: the caller escalates immediately without polling.
type SubmitError struct {
	Err error
}

func (e *SubmitError) Error() string { return fmt.Sprintf("remote submit: %v", e.Err) }
func (e *SubmitError) Unwrap() error { return e.Err }

// TimeoutError means the poll budget was exhausted, or too many
// consecutive poll requests failed, before the job reached a terminal
// state.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("remote job not finished within %s poll budget", e.Budget)
}

// TruncationError flags a nominally successful result whose payload is
// far smaller than expected for the document's page count. Remote
// services sometimes return degraded partial output with a 200 status;
// the size heuristic is the only way to catch it.
type TruncationError struct {
	Size     int
	Expected int
}

func (e *TruncationError) Error() string {
	return fmt.Sprintf("remote result suspiciously small: %d bytes, expected at least %d", e.Size, e.Expected)
}

// JobFailedError reports a terminal failed status from the remote
// service.
type JobFailedError struct {
	Status string
	Detail string
}

func (e *JobFailedError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("remote job %s: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("remote job %s", e.Status)
}

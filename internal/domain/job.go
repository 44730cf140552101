package domain

import (
	"errors"
	"fmt"
)

// JobState is the lifecycle of an external generation job. The job itself is
// owned by the remote service; the client only observes it.
type JobState string

const (
	JobSubmitted JobState = "submitted"
	JobPending   JobState = "pending"
	JobReady     JobState = "ready"
	JobFailed    JobState = "failed"
	JobTimedOut  JobState = "timed_out"
)

// Terminal reports whether no further transition can happen.
func (s JobState) Terminal() bool {
	switch s {
	case JobReady, JobFailed, JobTimedOut:
		return true
	default:
		return false
	}
}

// Outcome is the explicit result of one generation job.
type Outcome struct {
	Timepoint string
	State     JobState
	URL       string
	Err       error
}

// Ready builds a successful outcome.
func Ready(timepoint, url string) Outcome {
	return Outcome{Timepoint: timepoint, State: JobReady, URL: url}
}

// Failed builds a failed outcome, classifying timeouts from err.
func Failed(timepoint string, err error) Outcome {
	state := JobFailed
	if errors.Is(err, ErrJobTimedOut) {
		state = JobTimedOut
	}
	if err == nil {
		err = fmt.Errorf("%w: no error detail", ErrJobFailed)
	}
	return Outcome{Timepoint: timepoint, State: state, Err: err}
}

// OK reports whether the outcome carries a usable URL.
func (o Outcome) OK() bool {
	return o.State == JobReady && o.URL != ""
}

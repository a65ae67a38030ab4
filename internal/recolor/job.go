package recolor

import (
	"context"
	"strings"
)

// JobStatus mirrors the provider task states.
type JobStatus string

const (
	StatusPending   JobStatus = "PENDING"
	StatusRunning   JobStatus = "RUNNING"
	StatusSucceeded JobStatus = "SUCCEEDED"
	StatusFailed    JobStatus = "FAILED"
	StatusCanceled  JobStatus = "CANCELED"
	StatusUnknown   JobStatus = "UNKNOWN"
)

// ParseStatus normalises a provider status string.
func ParseStatus(raw string) JobStatus {
	switch s := JobStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed, StatusCanceled:
		return s
	case "CANCELLED":
		return StatusCanceled
	default:
		return StatusUnknown
	}
}

// Terminal reports whether polling can stop.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

// Job is the observed state of a remote generation task.
type Job struct {
	TaskID     string    `json:"task_id"`
	Status     JobStatus `json:"task_status"`
	ResultURLs []string  `json:"result_urls,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// JobBackend submits and inspects asynchronous image jobs.
type JobBackend interface {
	Submit(ctx context.Context, imageURL, prompt string) (string, error)
	Check(ctx context.Context, taskID string) (Job, error)
}

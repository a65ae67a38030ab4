// Package recolor produces an image of a piece of furniture rendered in a chosen swatch.
//
// Three interchangeable strategies exist: a remote asynchronous job with polling,
// local pixel compositing, and a direct multimodal edit. All of them satisfy
// Strategy and are selected at startup.
package recolor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"furnicolor/internal/imaging"
)

var (
	// ErrTimeout is returned when a job never reached a terminal state within the poll budget.
	ErrTimeout = errors.New("recolor: job timed out")
	// ErrJobFailed marks an upstream job that ended FAILED or CANCELED.
	ErrJobFailed = errors.New("recolor: job failed")
	// ErrNoResult is returned for a SUCCEEDED job without result URLs.
	ErrNoResult = errors.New("recolor: job succeeded without results")
	// ErrNoPublicURL is returned when the uploaded source has no URL reachable by the provider.
	ErrNoPublicURL = errors.New("recolor: uploaded image has no public URL")
	// ErrBusy is returned when a session already has a recolor in flight.
	ErrBusy = errors.New("recolor: a recolor is already running for this session")
)

// Request describes one recolor invocation.
type Request struct {
	Source           imaging.Source
	FurnitureType    string
	ColorDescription string
	Hex              string
}

// Validate checks the fields every strategy relies on.
func (r Request) Validate() error {
	if len(r.Source.Data) == 0 {
		return imaging.ErrEmpty
	}
	if strings.TrimSpace(r.Hex) == "" {
		return errors.New("recolor: hex is required")
	}
	return nil
}

// Prompt renders the text prompt shared by the generative strategies.
func (r Request) Prompt() string {
	furniture := strings.TrimSpace(r.FurnitureType)
	if furniture == "" {
		furniture = "furniture"
	}
	return fmt.Sprintf("%s (%s) %s", strings.TrimSpace(r.ColorDescription), strings.ToUpper(r.Hex), furniture)
}

// Result is a recolored image, either hosted remotely (ImageURL) or inline (Data).
type Result struct {
	ImageURL string `json:"image_url,omitempty"`
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type,omitempty"`
	Strategy string `json:"strategy"`
}

// Display returns something a browser can put in an <img src>.
func (r Result) Display() string {
	if r.ImageURL != "" {
		return r.ImageURL
	}
	if len(r.Data) == 0 {
		return ""
	}
	return imaging.Source{MIMEType: r.MIMEType, Data: r.Data}.DataURL()
}

// Strategy turns a request into a recolored image.
type Strategy interface {
	Name() string
	Recolor(ctx context.Context, req Request) (Result, error)
}

// JobFailedError carries the upstream status and message of a failed job.
type JobFailedError struct {
	Status  JobStatus
	Message string
}

func (e *JobFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("recolor: job %s", strings.ToLower(string(e.Status)))
	}
	return fmt.Sprintf("recolor: job %s: %s", strings.ToLower(string(e.Status)), e.Message)
}

// Unwrap lets callers match with errors.Is(err, ErrJobFailed).
func (e *JobFailedError) Unwrap() error { return ErrJobFailed }

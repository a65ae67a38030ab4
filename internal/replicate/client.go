// Package replicate runs style-transfer predictions on Replicate.
package replicate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	r8 "github.com/replicate/replicate-go"

	"furnicolor/internal/recolor"
)

const (
	// DefaultVersion is a ControlNet canny model that keeps the photo's edges.
	DefaultVersion = "aff48af9c68d162388d230a2ab003f68d2638d88307bdaf1c2f1ac95079c9613"

	promptSuffix   = ", photorealistic, interior design, high quality, 8k"
	addedPrompt    = "best quality, extremely detailed"
	negativePrompt = "longbody, lowres, bad anatomy, bad hands, missing fingers, extra digit, fewer digits, cropped, worst quality, low quality, cartoon, painting, illustration"
)

// Options configures the client.
type Options struct {
	BaseURL    string
	Token      string
	Version    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client creates and polls predictions.
type Client struct {
	api     *r8.Client
	version string
}

// NewClient builds a Client with defaults applied.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	clientOpts := []r8.ClientOption{
		r8.WithToken(strings.TrimSpace(opts.Token)),
		r8.WithHTTPClient(httpClient),
		r8.WithUserAgent("furnicolor"),
	}
	if base := strings.TrimRight(opts.BaseURL, "/"); base != "" {
		clientOpts = append(clientOpts, r8.WithBaseURL(base))
	}
	api, err := r8.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("replicate: %w", err)
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = DefaultVersion
	}
	return &Client{api: api, version: version}, nil
}

// StyleRequest is one style-transfer invocation. Model selects an official
// model ("owner/name") instead of the pinned ControlNet version.
type StyleRequest struct {
	ImageURL          string `json:"image_url"`
	Prompt            string `json:"prompt"`
	Model             string `json:"model,omitempty"`
	AspectRatio       string `json:"aspect_ratio,omitempty"`
	SafetyFilterLevel string `json:"safety_filter_level,omitempty"`
}

// OutputURLs flattens a prediction output, which is either a string or a list of strings.
func OutputURLs(out r8.PredictionOutput) []string {
	switch v := out.(type) {
	case string:
		if v != "" {
			return []string{v}
		}
	case []any:
		urls := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				urls = append(urls, s)
			}
		}
		return urls
	case []string:
		return v
	}
	return nil
}

// JobOf converts a prediction into the provider-neutral job view.
func JobOf(p *r8.Prediction) recolor.Job {
	job := recolor.Job{TaskID: p.ID, Status: mapStatus(p.Status)}
	if job.Status == recolor.StatusSucceeded {
		job.ResultURLs = OutputURLs(p.Output)
	}
	if p.Error != nil {
		job.Message = fmt.Sprint(p.Error)
	}
	return job
}

func mapStatus(s r8.Status) recolor.JobStatus {
	switch r8.Status(strings.ToLower(strings.TrimSpace(string(s)))) {
	case r8.Starting:
		return recolor.StatusPending
	case r8.Processing:
		return recolor.StatusRunning
	case r8.Succeeded:
		return recolor.StatusSucceeded
	case r8.Failed:
		return recolor.StatusFailed
	case r8.Canceled:
		return recolor.StatusCanceled
	default:
		return recolor.StatusUnknown
	}
}

// Submit starts a ControlNet prediction and returns its id.
func (c *Client) Submit(ctx context.Context, imageURL, prompt string) (string, error) {
	p, err := c.Create(ctx, StyleRequest{ImageURL: imageURL, Prompt: prompt})
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// Check reads a prediction.
func (c *Client) Check(ctx context.Context, id string) (recolor.Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return recolor.Job{}, errors.New("replicate: prediction id is required")
	}
	p, err := c.api.GetPrediction(ctx, id)
	if err != nil {
		return recolor.Job{}, fmt.Errorf("replicate: %w", err)
	}
	return JobOf(p), nil
}

// Create starts a prediction for the request.
func (c *Client) Create(ctx context.Context, req StyleRequest) (*r8.Prediction, error) {
	if strings.TrimSpace(req.ImageURL) == "" || strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("replicate: image url and prompt are required")
	}
	prompt := strings.TrimSpace(req.Prompt) + promptSuffix

	var (
		p   *r8.Prediction
		err error
	)
	if model := strings.Trim(strings.TrimSpace(req.Model), "/"); model != "" {
		owner, name, ok := strings.Cut(model, "/")
		if !ok || owner == "" || name == "" {
			return nil, fmt.Errorf("replicate: model %q must be owner/name", model)
		}
		input := r8.PredictionInput{
			"input_image": req.ImageURL,
			"prompt":      prompt,
		}
		if req.AspectRatio != "" {
			input["aspect_ratio"] = req.AspectRatio
		}
		if req.SafetyFilterLevel != "" {
			input["safety_filter_level"] = req.SafetyFilterLevel
		}
		p, err = c.api.CreatePredictionWithModel(ctx, owner, name, input, nil, false)
	} else {
		p, err = c.api.CreatePrediction(ctx, c.version, r8.PredictionInput{
			"image":            req.ImageURL,
			"prompt":           prompt,
			"a_prompt":         addedPrompt,
			"n_prompt":         negativePrompt,
			"num_samples":      1,
			"image_resolution": 512,
			"ddim_steps":       20,
			"scale":            9,
			"eta":              0,
		}, nil, false)
	}
	if err != nil {
		return nil, fmt.Errorf("replicate: %w", err)
	}
	if p.ID == "" {
		return nil, errors.New("replicate: response missing prediction id")
	}
	return p, nil
}

// Run creates a prediction and blocks until it finishes or the poll budget is spent.
func (c *Client) Run(ctx context.Context, req StyleRequest, poller recolor.Poller) ([]string, error) {
	p, err := c.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	job := JobOf(p)
	if !job.Status.Terminal() {
		job, err = poller.Wait(ctx, p.ID, c.Check)
		if err != nil {
			return nil, err
		}
	}
	if job.Status != recolor.StatusSucceeded {
		return nil, &recolor.JobFailedError{Status: job.Status, Message: job.Message}
	}
	if len(job.ResultURLs) == 0 {
		return nil, recolor.ErrNoResult
	}
	return job.ResultURLs, nil
}

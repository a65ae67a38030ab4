package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"furnicolor/internal/dashscope"
	"furnicolor/internal/recolor"
)

// Client talks to a job proxy endpoint such as /api/jobs of another deployment.
type Client struct {
	Endpoint   string
	Token      string
	HTTPClient *http.Client
}

// NewClient returns a Client for endpoint. token is sent as a bearer token
// when set.
func NewClient(endpoint, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		Endpoint:   strings.TrimSpace(endpoint),
		Token:      strings.TrimSpace(token),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Submit implements recolor.JobBackend.
func (c *Client) Submit(ctx context.Context, imageURL, prompt string) (string, error) {
	env, err := c.post(ctx, jobRequest{Action: "submit", ImageURL: imageURL, Prompt: prompt})
	if err != nil {
		return "", err
	}
	if env.Output.TaskID == "" {
		return "", errors.New("proxy: response missing task_id")
	}
	return env.Output.TaskID, nil
}

// Check implements recolor.JobBackend.
func (c *Client) Check(ctx context.Context, taskID string) (recolor.Job, error) {
	env, err := c.post(ctx, jobRequest{Action: "check", TaskID: taskID})
	if err != nil {
		return recolor.Job{}, err
	}
	job := env.Job()
	if job.TaskID == "" {
		job.TaskID = taskID
	}
	return job, nil
}

func (c *Client) post(ctx context.Context, body jobRequest) (dashscope.Envelope, error) {
	if c.Endpoint == "" {
		return dashscope.Envelope{}, errors.New("proxy: endpoint is not configured")
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return dashscope.Envelope{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return dashscope.Envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return dashscope.Envelope{}, fmt.Errorf("proxy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error != "" {
			return dashscope.Envelope{}, fmt.Errorf("proxy: %s (http %d)", e.Error, resp.StatusCode)
		}
		return dashscope.Envelope{}, fmt.Errorf("proxy: http %d", resp.StatusCode)
	}
	var env dashscope.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return dashscope.Envelope{}, fmt.Errorf("proxy: decode response: %w", err)
	}
	return env, nil
}

// Package dashscope is a client for the DashScope asynchronous image-generation task API.
package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"furnicolor/internal/recolor"
)

const (
	defaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"
	defaultModel   = "wanx-style-repaint-v1"

	// styleSuffix keeps the repaint close to a material swap instead of a style transfer.
	styleSuffix = ", photorealistic, detailed texture, 8k resolution, interior design photography, keep original structure"
)

// Options configures the client.
type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Client submits repaint tasks and reads their status.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	model      string
}

// NewClient builds a Client with defaults applied.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	return &Client{
		httpClient: client,
		baseURL:    base,
		token:      strings.TrimSpace(opts.APIKey),
		model:      model,
	}
}

type submitRequest struct {
	Model string `json:"model"`
	Input struct {
		ImageURL   string `json:"image_url"`
		StyleIndex int    `json:"style_index"`
	} `json:"input"`
	Parameters struct {
		StylePrompt string `json:"style_prompt"`
		Size        string `json:"size"`
		N           int    `json:"n"`
	} `json:"parameters"`
}

// Envelope is the response shape shared by submit and task queries.
type Envelope struct {
	Output struct {
		TaskID     string `json:"task_id,omitempty"`
		TaskStatus string `json:"task_status,omitempty"`
		Results    []struct {
			URL string `json:"url,omitempty"`
		} `json:"results,omitempty"`
		Code    string `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"output"`
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Job converts the envelope into the provider-neutral job view.
func (e Envelope) Job() recolor.Job {
	job := recolor.Job{
		TaskID:  e.Output.TaskID,
		Status:  recolor.ParseStatus(e.Output.TaskStatus),
		Message: e.Output.Message,
	}
	if job.Message == "" {
		job.Message = e.Message
	}
	for _, r := range e.Output.Results {
		if strings.TrimSpace(r.URL) != "" {
			job.ResultURLs = append(job.ResultURLs, r.URL)
		}
	}
	return job
}

// FromJob renders a job in the envelope shape, for services that relay tasks.
func FromJob(job recolor.Job) Envelope {
	var e Envelope
	e.Output.TaskID = job.TaskID
	e.Output.TaskStatus = string(job.Status)
	e.Output.Message = job.Message
	for _, u := range job.ResultURLs {
		e.Output.Results = append(e.Output.Results, struct {
			URL string `json:"url,omitempty"`
		}{URL: u})
	}
	return e
}

// Submit creates a repaint task for imageURL and returns its task id.
func (c *Client) Submit(ctx context.Context, imageURL, prompt string) (string, error) {
	if c.token == "" {
		return "", errors.New("dashscope: API key is missing")
	}
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" || strings.TrimSpace(prompt) == "" {
		return "", errors.New("dashscope: image url and prompt are required")
	}

	var payload submitRequest
	payload.Model = c.model
	payload.Input.ImageURL = imageURL
	payload.Input.StyleIndex = 0
	payload.Parameters.StylePrompt = strings.TrimSpace(prompt) + styleSuffix
	payload.Parameters.Size = "1024*1024"
	payload.Parameters.N = 1

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	var out Envelope
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/services/aigc/image-generation/generation", body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Output.TaskID) == "" {
		return "", errors.New("dashscope: response missing task_id")
	}
	return out.Output.TaskID, nil
}

// Check fetches the current state of a task.
func (c *Client) Check(ctx context.Context, taskID string) (recolor.Job, error) {
	if c.token == "" {
		return recolor.Job{}, errors.New("dashscope: API key is missing")
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return recolor.Job{}, errors.New("dashscope: task id is required")
	}
	var out Envelope
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/tasks/"+url.PathEscape(taskID), nil, &out); err != nil {
		return recolor.Job{}, err
	}
	job := out.Job()
	if job.TaskID == "" {
		job.TaskID = taskID
	}
	return job, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out *Envelope) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-DashScope-Async", "enable")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dashscope: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("dashscope: http %d", resp.StatusCode)
		}
		return fmt.Errorf("dashscope: decode response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if out.Message != "" {
			return fmt.Errorf("dashscope error: %s (%s)", out.Message, out.Code)
		}
		return fmt.Errorf("dashscope: http %d", resp.StatusCode)
	}
	return nil
}

package dashscope

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"furnicolor/internal/recolor"
)

func TestClientSubmit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/services/aigc/image-generation/generation" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %s", got)
		}
		if got := r.Header.Get("X-DashScope-Async"); got != "enable" {
			t.Fatalf("async header missing: %q", got)
		}
		var payload submitRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if payload.Model != "wanx-style-repaint-v1" || payload.Input.ImageURL != "https://example.com/in.png" {
			t.Fatalf("unexpected payload: %+v", payload)
		}
		if !strings.HasPrefix(payload.Parameters.StylePrompt, "walnut (#3B2F2F) Sofa, photorealistic") {
			t.Fatalf("style prompt mismatch: %s", payload.Parameters.StylePrompt)
		}
		if payload.Parameters.Size != "1024*1024" || payload.Parameters.N != 1 {
			t.Fatalf("parameters mismatch: %+v", payload.Parameters)
		}
		_, _ = w.Write([]byte(`{"output":{"task_id":"abc-123","task_status":"PENDING"},"request_id":"r1"}`))
	}))
	defer ts.Close()

	c := NewClient(Options{APIKey: "test-key", BaseURL: ts.URL})
	id, err := c.Submit(context.Background(), "https://example.com/in.png", "walnut (#3B2F2F) Sofa")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if id != "abc-123" {
		t.Fatalf("unexpected task id: %s", id)
	}
}

func TestClientCheck(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status recolor.JobStatus
		urls   int
		msg    string
	}{
		{name: "running", body: `{"output":{"task_id":"t","task_status":"RUNNING"}}`, status: recolor.StatusRunning},
		{name: "succeeded", body: `{"output":{"task_id":"t","task_status":"SUCCEEDED","results":[{"url":"https://oss/out.png"}]}}`, status: recolor.StatusSucceeded, urls: 1},
		{name: "failed", body: `{"output":{"task_id":"t","task_status":"FAILED","code":"InvalidURL","message":"download failed"}}`, status: recolor.StatusFailed, msg: "download failed"},
		{name: "unknown", body: `{"output":{"task_status":"UNKNOWN"}}`, status: recolor.StatusUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/tasks/t" || r.Method != http.MethodGet {
					t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
				}
				_, _ = w.Write([]byte(tc.body))
			}))
			defer ts.Close()

			job, err := NewClient(Options{APIKey: "k", BaseURL: ts.URL}).Check(context.Background(), "t")
			if err != nil {
				t.Fatalf("Check error: %v", err)
			}
			if job.Status != tc.status || len(job.ResultURLs) != tc.urls || job.Message != tc.msg || job.TaskID != "t" {
				t.Fatalf("unexpected job: %+v", job)
			}
		})
	}
}

func TestClientErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"InvalidApiKey","message":"Invalid API-key provided."}`))
	}))
	defer ts.Close()

	_, err := NewClient(Options{APIKey: "bad", BaseURL: ts.URL}).Submit(context.Background(), "https://x/in.png", "p")
	if err == nil || !strings.Contains(err.Error(), "Invalid API-key provided. (InvalidApiKey)") {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := NewClient(Options{}).Submit(context.Background(), "https://x/in.png", "p"); err == nil {
		t.Fatal("expected error when api key missing")
	}
	if _, err := NewClient(Options{APIKey: "k"}).Submit(context.Background(), "", "p"); err == nil {
		t.Fatal("expected error when image url missing")
	}
}

func TestFromJobRendersEnvelope(t *testing.T) {
	job := recolor.Job{TaskID: "t-9", Status: recolor.StatusSucceeded, ResultURLs: []string{"https://x/a.png"}}
	raw, err := json.Marshal(FromJob(job))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"results":[{"url":"https://x/a.png"}]`) || !strings.Contains(string(raw), `"task_status":"SUCCEEDED"`) {
		t.Fatalf("unexpected envelope: %s", raw)
	}
	var back Envelope
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if got := back.Job(); got.TaskID != "t-9" || len(got.ResultURLs) != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

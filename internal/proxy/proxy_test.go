package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"furnicolor/internal/recolor"
	"furnicolor/internal/replicate"
)

type stubBackend struct {
	jobs      map[string][]recolor.JobStatus
	submitErr error
	submitted []string
}

func (s *stubBackend) Submit(_ context.Context, imageURL, prompt string) (string, error) {
	if s.submitErr != nil {
		return "", s.submitErr
	}
	s.submitted = append(s.submitted, imageURL+"|"+prompt)
	return "task-1", nil
}

func (s *stubBackend) Check(_ context.Context, taskID string) (recolor.Job, error) {
	seq, ok := s.jobs[taskID]
	if !ok {
		return recolor.Job{}, errors.New("unknown task")
	}
	status := seq[0]
	if len(seq) > 1 {
		s.jobs[taskID] = seq[1:]
	}
	job := recolor.Job{TaskID: taskID, Status: status}
	if status == recolor.StatusSucceeded {
		job.ResultURLs = []string{"https://cdn/out.png"}
	}
	return job, nil
}

func post(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestJobHandler(t *testing.T) {
	backend := &stubBackend{jobs: map[string][]recolor.JobStatus{"task-1": {recolor.StatusSucceeded}}}
	h := Handler{Jobs: backend, Logger: zerolog.Nop()}

	tests := []struct {
		name     string
		body     string
		status   int
		contains string
	}{
		{name: "submit", body: `{"action":"submit","image_url":"https://x/in.png","prompt":"walnut sofa"}`, status: http.StatusOK, contains: `"task_id":"task-1"`},
		{name: "check", body: `{"action":"check","task_id":"task-1"}`, status: http.StatusOK, contains: `"results":[{"url":"https://cdn/out.png"}]`},
		{name: "submit missing prompt", body: `{"action":"submit","image_url":"https://x/in.png"}`, status: http.StatusBadRequest, contains: "error"},
		{name: "check missing id", body: `{"action":"check"}`, status: http.StatusBadRequest, contains: "error"},
		{name: "unknown action", body: `{"action":"explode"}`, status: http.StatusBadRequest, contains: "error"},
		{name: "malformed", body: `{`, status: http.StatusBadRequest, contains: "error"},
		{name: "upstream failure", body: `{"action":"check","task_id":"nope"}`, status: http.StatusBadGateway, contains: "unknown task"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(t, h.Job, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.contains) {
				t.Fatalf("body %s does not contain %s", rec.Body.String(), tc.contains)
			}
		})
	}
}

func TestClientAgainstHandler(t *testing.T) {
	backend := &stubBackend{jobs: map[string][]recolor.JobStatus{
		"task-1": {recolor.StatusPending, recolor.StatusRunning, recolor.StatusSucceeded},
	}}
	var gotAuth []string
	jobHandler := Handler{Jobs: backend, Logger: zerolog.Nop()}.Job
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		jobHandler(w, r)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, " svc-token ", time.Second)
	id, err := client.Submit(context.Background(), "https://x/in.png", "oak chair")
	if err != nil || id != "task-1" {
		t.Fatalf("Submit = %q, %v", id, err)
	}
	job, err := recolor.Poller{Interval: time.Millisecond, MaxAttempts: 5}.Wait(context.Background(), id, client.Check)
	if err != nil {
		t.Fatalf("Wait error: %v", err)
	}
	if job.Status != recolor.StatusSucceeded || len(job.ResultURLs) != 1 {
		t.Fatalf("unexpected job: %+v", job)
	}

	if _, err := client.Check(context.Background(), "missing"); err == nil || !strings.Contains(err.Error(), "http 502") {
		t.Fatalf("expected upstream error, got %v", err)
	}
	for _, h := range gotAuth {
		if h != "Bearer svc-token" {
			t.Fatalf("Authorization = %q", h)
		}
	}
	if len(gotAuth) == 0 {
		t.Fatal("no requests reached the server")
	}
}

type stubStyles struct {
	out []string
	err error
	got replicate.StyleRequest
}

func (s *stubStyles) Run(_ context.Context, req replicate.StyleRequest, _ recolor.Poller) ([]string, error) {
	s.got = req
	return s.out, s.err
}

func TestStyleTransfer(t *testing.T) {
	styles := &stubStyles{out: []string{"https://x/a.png", "https://x/b.png"}}
	h := Handler{Styles: styles, Logger: zerolog.Nop()}

	rec := post(t, h.StyleTransfer, `{"image_url":"https://x/in.png","prompt":"p","aspect_ratio":"1:1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Output []string `json:"output"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || len(body.Output) != 2 {
		t.Fatalf("body = %s (%v)", rec.Body.String(), err)
	}
	if styles.got.AspectRatio != "1:1" {
		t.Fatalf("aspect ratio not forwarded: %+v", styles.got)
	}

	styles.err = recolor.ErrTimeout
	if rec := post(t, h.StyleTransfer, `{"image_url":"u","prompt":"p"}`); rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("timeout status = %d", rec.Code)
	}
	if rec := post(t, h.StyleTransfer, `{"prompt":"p"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing image status = %d", rec.Code)
	}
}

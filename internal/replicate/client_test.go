package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	r8 "github.com/replicate/replicate-go"

	"furnicolor/internal/recolor"
)

func newTestClient(t *testing.T, baseURL, token string) *Client {
	t.Helper()
	c, err := NewClient(Options{BaseURL: baseURL, Token: token})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestRunPollsUntilSucceeded(t *testing.T) {
	var polls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer r8-test" {
			t.Fatalf("unexpected auth header: %s", got)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/predictions":
			var payload struct {
				Version string         `json:"version"`
				Input   map[string]any `json:"input"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if payload.Version != DefaultVersion {
				t.Fatalf("version mismatch: %s", payload.Version)
			}
			if payload.Input["image"] != "https://x/in.png" || !strings.HasSuffix(payload.Input["prompt"].(string), promptSuffix) {
				t.Fatalf("input mismatch: %+v", payload.Input)
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"p1","status":"starting"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/predictions/p1":
			if polls.Add(1) < 3 {
				_, _ = w.Write([]byte(`{"id":"p1","status":"processing"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":["https://x/edges.png","https://x/out.png"]}`))
		default:
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, "r8-test")
	out, err := c.Run(context.Background(), StyleRequest{ImageURL: "https://x/in.png", Prompt: "walnut sofa"}, recolor.Poller{Interval: time.Millisecond, MaxAttempts: 30})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(out) != 2 || polls.Load() != 3 {
		t.Fatalf("unexpected output %v after %d polls", out, polls.Load())
	}
}

func TestRunModelEndpoint(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/black-forest-labs/flux-kontext-pro/predictions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload struct {
			Input map[string]any `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload.Input["aspect_ratio"] != "match_input_image" || payload.Input["safety_filter_level"] != "block_only_high" {
			t.Fatalf("optional fields missing: %+v", payload.Input)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"p2","status":"succeeded","output":"https://x/out.webp"}`))
	}))
	defer ts.Close()

	out, err := newTestClient(t, ts.URL, "t").Run(context.Background(), StyleRequest{
		ImageURL:          "https://x/in.png",
		Prompt:            "p",
		Model:             "black-forest-labs/flux-kontext-pro",
		AspectRatio:       "match_input_image",
		SafetyFilterLevel: "block_only_high",
	}, recolor.Poller{Interval: time.Millisecond, MaxAttempts: 1})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(out) != 1 || out[0] != "https://x/out.webp" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestRunFailures(t *testing.T) {
	failed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"p","status":"starting"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"p","status":"failed","error":"NSFW content detected"}`))
	}))
	defer failed.Close()

	_, err := newTestClient(t, failed.URL, "t").Run(context.Background(), StyleRequest{ImageURL: "u", Prompt: "p"}, recolor.Poller{Interval: time.Millisecond, MaxAttempts: 5})
	var jf *recolor.JobFailedError
	if !errors.As(err, &jf) || jf.Message != "NSFW content detected" {
		t.Fatalf("expected JobFailedError, got %v", err)
	}

	rejected := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"Invalid version or not permitted"}`))
	}))
	defer rejected.Close()
	_, err = newTestClient(t, rejected.URL, "t").Submit(context.Background(), "u", "p")
	if err == nil || !strings.Contains(err.Error(), "Invalid version") {
		t.Fatalf("expected detail in error, got %v", err)
	}

	if _, err := NewClient(Options{}); err == nil {
		t.Fatal("expected error without token")
	}
	if _, err := newTestClient(t, rejected.URL, "t").Create(context.Background(), StyleRequest{ImageURL: "u", Prompt: "p", Model: "flux"}); err == nil {
		t.Fatal("expected error for a model without owner")
	}
}

func TestOutputURLs(t *testing.T) {
	tests := []struct {
		name string
		out  any
		want int
	}{
		{name: "single", out: "https://x/a.png", want: 1},
		{name: "list", out: []any{"https://x/a.png", "https://x/b.png"}, want: 2},
		{name: "empty", out: nil, want: 0},
		{name: "blank", out: "", want: 0},
	}
	for _, tc := range tests {
		if got := OutputURLs(tc.out); len(got) != tc.want {
			t.Fatalf("%s: OutputURLs = %v", tc.name, got)
		}
	}
}

func TestMapStatus(t *testing.T) {
	cases := map[r8.Status]recolor.JobStatus{
		"starting":   recolor.StatusPending,
		"processing": recolor.StatusRunning,
		"succeeded":  recolor.StatusSucceeded,
		"failed":     recolor.StatusFailed,
		"canceled":   recolor.StatusCanceled,
		"queued":     recolor.StatusUnknown,
	}
	for in, want := range cases {
		if got := mapStatus(in); got != want {
			t.Fatalf("mapStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

package events

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"furnicolor/internal/recolor"
)

func TestPublishIsSessionScoped(t *testing.T) {
	b := NewBroker()
	mine := b.Subscribe("s1")
	theirs := b.Subscribe("s2")
	defer b.Unsubscribe(mine)
	defer b.Unsubscribe(theirs)

	b.Publish(Event{SessionID: "s1", TaskID: "t1", Progress: recolor.Progress{Stage: recolor.StageSubmitted}})

	select {
	case evt := <-mine:
		if evt.TaskID != "t1" || evt.At.IsZero() {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}
	select {
	case evt := <-theirs:
		t.Fatalf("other session received %+v", evt)
	default:
	}
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s1")
	defer b.Unsubscribe(ch)
	for i := 0; i < 20; i++ {
		b.Publish(Event{SessionID: "s1"})
	}
	if len(ch) != cap(ch) {
		t.Fatalf("buffer should be full, len=%d cap=%d", len(ch), cap(ch))
	}
}

func TestStream(t *testing.T) {
	b := NewBroker()
	session := func(r *http.Request) (string, bool) {
		id := r.URL.Query().Get("s")
		return id, id != ""
	}
	ts := httptest.NewServer(b.Stream(session, time.Hour))
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous stream status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"?s=s1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	if line, _ := reader.ReadString('\n'); !strings.HasPrefix(line, ": connected") {
		t.Fatalf("first line = %q", line)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		b.Publish(Event{SessionID: "s1", TaskID: "t9", Progress: recolor.Progress{Stage: recolor.StagePolling, Attempt: 2}})
		b.mu.RLock()
		subscribed := len(b.subscribers) > 0
		b.mu.RUnlock()
		if subscribed || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	for time.Now().Before(deadline) {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			if !strings.Contains(line, `"task_id":"t9"`) || !strings.Contains(line, `"attempt":2`) {
				t.Fatalf("unexpected data line: %s", line)
			}
			return
		}
	}
	t.Fatal("no event received")
}

package main

import (
	"bytes"
	"strings"
	"testing"

	"furnicolor/internal/logging"
)

func TestSessionSecret(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "production", "")

	if got := string(sessionSecret("s3cret", logger)); got != "s3cret" {
		t.Fatalf("secret = %q", got)
	}
	if buf.Len() != 0 {
		t.Fatalf("unexpected log: %s", buf.String())
	}

	if got := sessionSecret("", logger); len(got) == 0 {
		t.Fatal("fallback secret is empty")
	}
	if !strings.Contains(buf.String(), "SESSION_SECRET missing") {
		t.Fatalf("missing warning, log: %s", buf.String())
	}
}

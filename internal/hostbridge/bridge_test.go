package hostbridge

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStream_ParsesLogEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"tool_id\":\"t1\",\"stream\":\"stdout\",\"message\":\"hello\",\"timestamp\":\"2026-01-01T00:00:00Z\"}\n\n")
		flusher.Flush()
		fmt.Fprint(w, ": keep-alive\n\n")
		flusher.Flush()
		fmt.Fprint(w, "data: not-json\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	client := New(srv.URL)
	var entries []LogEntry
	var fallbacks []FallbackPayload

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := client.Stream(ctx, "t1", func(entry *LogEntry, fallback *FallbackPayload) {
		if entry != nil {
			entries = append(entries, *entry)
		}
		if fallback != nil {
			fallbacks = append(fallbacks, *fallback)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 1 || entries[0].Message != "hello" {
		t.Fatalf("expected one parsed entry, got %+v", entries)
	}
	if len(fallbacks) != 1 || fallbacks[0].Raw != "not-json" {
		t.Fatalf("expected one fallback payload, got %+v", fallbacks)
	}
}

func TestEventName(t *testing.T) {
	if got := EventName("abc"); got != "mcp-log://abc" {
		t.Fatalf("got %s", got)
	}
}

package logfabric

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRingEviction_RetainsLastCapacityEntries(t *testing.T) {
	f := New()
	for i := 0; i < RingCapacity+50; i++ {
		f.Append("tool-1", "stdout", fmt.Sprintf("line-%d", i))
	}

	snap := f.Logs("tool-1")
	if len(snap) != RingCapacity {
		t.Fatalf("expected %d entries, got %d", RingCapacity, len(snap))
	}
	if snap[0].Message != "line-50" {
		t.Fatalf("expected oldest retained entry to be line-50, got %s", snap[0].Message)
	}
	if snap[len(snap)-1].Message != fmt.Sprintf("line-%d", RingCapacity+49) {
		t.Fatalf("expected newest entry to be the last appended, got %s", snap[len(snap)-1].Message)
	}
}

func TestClearLogs_ResetsRingNotSubscriptions(t *testing.T) {
	f := New()
	f.Append("tool-1", "stdout", "before-clear")

	ch, cancel := f.Subscribe("tool-1")
	defer cancel()

	f.ClearLogs("tool-1")
	if got := f.Logs("tool-1"); len(got) != 0 {
		t.Fatalf("expected empty ring after clear, got %d entries", len(got))
	}

	f.Append("tool-1", "stdout", "after-clear")
	select {
	case entry := <-ch:
		if entry.Message != "after-clear" {
			t.Fatalf("expected after-clear entry, got %s", entry.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("subscription did not survive clear_logs")
	}
}

func TestSubscribe_ReceivesLiveEntries(t *testing.T) {
	f := New()
	ch, cancel := f.Subscribe("tool-1")
	defer cancel()

	f.Append("tool-1", "event", "process started")

	select {
	case entry := <-ch:
		if entry.Stream != "event" || entry.Message != "process started" {
			t.Fatalf("unexpected entry: %+v", entry)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for live entry")
	}
}

func TestSubscribe_SlowConsumerDropsRatherThanBlocksProducer(t *testing.T) {
	f := New()
	_, cancel := f.Subscribe("tool-1") // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < BroadcastCapacity+100; i++ {
			f.Append("tool-1", "stdout", fmt.Sprintf("line-%d", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer blocked on a slow subscriber")
	}
}

func TestServeSSE_HydratesThenStreamsLiveEntry(t *testing.T) {
	f := New()
	f.Append("tool-1", "stdout", "hydrated-line")

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/mcp/tools/tool-1/logs/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	go func() {
		time.Sleep(50 * time.Millisecond)
		f.Append("tool-1", "stdout", "live-line")
	}()

	done := make(chan struct{})
	go func() {
		f.ServeSSE(rec, req, "tool-1")
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if !strings.Contains(body, "hydrated-line") {
		t.Fatalf("expected hydrated line in SSE body, got: %s", body)
	}
	if !strings.Contains(body, "live-line") {
		t.Fatalf("expected live line in SSE body, got: %s", body)
	}
}

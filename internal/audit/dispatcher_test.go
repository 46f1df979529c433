package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	got     []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.got = append(s.got, e)
	s.mu.Unlock()
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	if d := NewDispatcher(Config{Enabled: false}, NoOpSink{}); d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	var d *Dispatcher
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher should report zero drops")
	}
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(8)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, sink)

	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success"})
	}
	d.Close()

	for i := 0; i < 3; i++ {
		select {
		case e := <-sink.Events():
			if e.EventType != "login_success" {
				t.Fatalf("unexpected event %q", e.EventType)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
}

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "refresh_failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a saturated buffer")
	}
	close(sink.release)
	d.Close()
}

func TestJSONWriterSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{ID: "a", EventType: "logout_session", Success: true})
	sink.Emit(context.Background(), Event{ID: "b", EventType: "logout_all", Success: true})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var e Event
	if err := json.Unmarshal([]byte(lines[1]), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.ID != "b" || e.EventType != "logout_all" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

type panicSink struct{}

func (panicSink) Emit(context.Context, Event) { panic("sink exploded") }

func TestDispatcherSurvivesSinkPanic(t *testing.T) {
	var logs bytes.Buffer
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 4,
		Logger:     slog.New(slog.NewTextHandler(&logs, nil)),
	}, panicSink{})

	d.Emit(context.Background(), Event{EventType: "login_failure"})
	d.Emit(context.Background(), Event{EventType: "login_failure"})
	d.Close()

	if d.Delivered() != 0 {
		t.Fatalf("expected no deliveries, got %d", d.Delivered())
	}
	if got := strings.Count(logs.String(), "audit sink panicked"); got != 2 {
		t.Fatalf("expected 2 panic logs, got %d:\n%s", got, logs.String())
	}
}

func TestDispatcherCloseIsIdempotentAndStampsEvents(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("KST", 9*3600))
	d.now = func() time.Time { return fixed }

	d.Emit(context.Background(), Event{EventType: "refresh_success"})
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "after_close"})

	if d.Delivered() != 1 {
		t.Fatalf("expected 1 delivery, got %d", d.Delivered())
	}
	e := <-sink.Events()
	if e.ID == "" {
		t.Fatal("expected a generated event id")
	}
	if !e.Timestamp.Equal(fixed) || e.Timestamp.Location() != time.UTC {
		t.Fatalf("unexpected timestamp %v", e.Timestamp)
	}
	select {
	case late := <-sink.Events():
		t.Fatalf("event after close delivered: %+v", late)
	default:
	}
}

package authcore

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mwestby/authcore/cache"
	"github.com/mwestby/authcore/otp"
)

func newAuditedEngine(t *testing.T, sink AuditSink) (*Engine, *fakeMailer) {
	t.Helper()

	mailer := newFakeMailer()
	engine, err := New().
		WithConfig(testConfig()).
		WithCache(cache.NewClientWithBackend(cache.NewMemoryBackend(), nil)).
		WithOTPStore(otp.NewMemoryStore()).
		WithUserStore(newFakeUserStore()).
		WithMailer(mailer).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return engine, mailer
}

func TestAuditEventsEmitted(t *testing.T) {
	sink := NewChannelSink(64)
	engine, _ := newAuditedEngine(t, sink)
	ctx := WithClientIP(context.Background(), "203.0.113.7")

	registerTestUser(t, engine)
	if _, err := engine.Authenticate(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	_, _ = engine.Authenticate(ctx, testEmail, "wrong password")

	// Close drains the dispatcher into the sink.
	engine.Close()

	seen := make(map[string]AuditEvent)
	for {
		select {
		case event := <-sink.Events():
			seen[event.EventType] = event
			continue
		default:
		}
		break
	}

	for _, want := range []string{AuditAccountCreated, AuditOTPIssued, AuditLoginSuccess, AuditLoginFailure} {
		if _, ok := seen[want]; !ok {
			t.Errorf("no %s event emitted", want)
		}
	}

	login := seen[AuditLoginSuccess]
	if !login.Success || login.UserID == "" || login.SessionID == "" {
		t.Fatalf("login event = %+v", login)
	}
	if login.IP != "203.0.113.7" {
		t.Fatalf("login event IP = %q", login.IP)
	}
	if login.Timestamp.IsZero() {
		t.Fatal("event not timestamped")
	}

	failure := seen[AuditLoginFailure]
	if failure.Success || failure.Error == "" {
		t.Fatalf("failure event = %+v", failure)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now(),
		EventType: AuditLogout,
		Success:   true,
	})

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	if err := json.Unmarshal([]byte(line), &decoded); err != nil {
		t.Fatalf("sink output is not JSON: %v", err)
	}
	if decoded["event_type"] != AuditLogout {
		t.Fatalf("event_type = %v", decoded["event_type"])
	}
}

// blockingSink holds the dispatcher goroutine until released.
type blockingSink struct {
	release chan struct{}
	seen    chan AuditEvent
}

func (s *blockingSink) Emit(_ context.Context, event AuditEvent) {
	<-s.release
	s.seen <- event
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{}), seen: make(chan AuditEvent, 16)}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 8; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: AuditLogout})
	}
	if d.Dropped() == 0 {
		t.Fatal("no events dropped with a full single-slot buffer")
	}

	close(sink.release)
	d.Close()

	if d.Delivered() == 0 {
		t.Fatal("no events delivered after release")
	}
	if d.Delivered()+d.Dropped() != 8 {
		t.Fatalf("delivered %d + dropped %d, want 8 total", d.Delivered(), d.Dropped())
	}
}

func TestDispatcherFlushesOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16, DropIfFull: true}, sink)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: AuditLogout})
	}
	d.Close()

	if got := d.Delivered(); got != 5 {
		t.Fatalf("Delivered = %d, want 5", got)
	}
	if got := len(sink.Events()); got != 5 {
		t.Fatalf("sink holds %d events, want 5", got)
	}

	// Emit after Close is a silent no-op.
	d.Emit(context.Background(), AuditEvent{EventType: AuditLogout})
	if got := d.Delivered(); got != 5 {
		t.Fatalf("Delivered after close = %d", got)
	}
}

func TestDispatcherDisabled(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("disabled audit config produced a dispatcher")
	}

	// nil dispatcher methods are safe no-ops.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(context.Background(), AuditEvent{EventType: AuditLogout})
	sink.Emit(context.Background(), AuditEvent{EventType: AuditLoginFailure})

	if got := sink.Dropped(); got != 1 {
		t.Fatalf("Dropped = %d, want 1", got)
	}

	// The first event is still retrievable.
	event := <-sink.Events()
	if event.EventType != AuditLogout {
		t.Fatalf("event = %+v", event)
	}
}

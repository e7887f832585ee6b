package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
	closed   bool
	down     bool
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeConn) IsConnected() bool { return !f.down }

func (f *fakeConn) Close() { f.closed = true }

func TestNATSPublisher_Envelope(t *testing.T) {
	fc := &fakeConn{}
	p := newNATSPublisher(fc, "donorsearch", zap.NewNop())
	at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	err := p.Publish(context.Background(), SubjectDue, Due{SessionID: "s-1", ActiveGeohash: "wh0r3q"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fc.subjects) != 1 || fc.subjects[0] != "donorsearch.due" {
		t.Fatalf("subjects = %v", fc.subjects)
	}

	var env struct {
		Event     Due       `json:"event"`
		Timestamp time.Time `json:"timestamp"`
		Source    string    `json:"source"`
		Version   string    `json:"version"`
	}
	if err := json.Unmarshal(fc.payloads[0], &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Event.SessionID != "s-1" || env.Event.ActiveGeohash != "wh0r3q" {
		t.Errorf("event = %+v", env.Event)
	}
	if !env.Timestamp.Equal(at) || env.Source != "donorsearch" || env.Version == "" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestNATSPublisher_NoPrefix(t *testing.T) {
	fc := &fakeConn{}
	p := newNATSPublisher(fc, "", zap.NewNop())
	_ = p.Publish(context.Background(), SubjectDecision, Decision{})
	if fc.subjects[0] != "decision" {
		t.Errorf("subject = %q", fc.subjects[0])
	}
}

func TestNATSPublisher_Errors(t *testing.T) {
	fc := &fakeConn{err: errors.New("nats: connection closed")}
	p := newNATSPublisher(fc, "x", zap.NewNop())
	if err := p.Publish(context.Background(), SubjectDue, Due{}); err == nil {
		t.Error("expected publish error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := newNATSPublisher(&fakeConn{}, "x", zap.NewNop()).Publish(ctx, SubjectDue, Due{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}

	if err := p.Publish(context.Background(), SubjectDue, func() {}); err == nil {
		t.Error("expected marshal error")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	fc := &fakeConn{}
	newNATSPublisher(fc, "x", zap.NewNop()).Close()
	if !fc.closed {
		t.Error("connection not closed")
	}
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.Publish(context.Background(), SubjectDue, Due{}); err != nil {
		t.Fatal(err)
	}
	p.Close()
}

func TestNATSPublisher_HealthCheck(t *testing.T) {
	fc := &fakeConn{}
	p := newNATSPublisher(fc, "donorsearch", zap.NewNop())
	if err := p.HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fc.down = true
	if err := p.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error while disconnected")
	}
}

package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	domsession "github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/domain/session"
	"github.com/CraftsmenLtd/bloodconnect-donorsearch/internal/metrics"
)

func newTestWorker(q *memQueue, s *memSessions, pub *recordingPublisher) *Worker {
	return New(q, s, fixedTargets{}, pub, Config{BatchSize: 10, Lease: 5 * time.Minute}, zap.NewNop()).
		WithClock(func() time.Time { return now })
}

func TestProcessOnce(t *testing.T) {
	cancelled, _ := searching("c").Cancel(now)
	q := &memQueue{at: map[string]time.Time{
		"a":       now.Add(-time.Minute),
		"c":       now.Add(-time.Minute),
		"missing": now,
		"later":   now.Add(time.Hour),
	}}
	s := &memSessions{data: map[string]domsession.Session{
		"a":     searching("a"),
		"c":     cancelled,
		"later": searching("later"),
	}}
	pub := &recordingPublisher{}

	reg := prometheus.NewRegistry()
	m := metrics.NewScheduler()
	if err := m.Register(reg); err != nil {
		t.Fatal(err)
	}

	st, err := newTestWorker(q, s, pub).WithMetrics(m).ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != (Stats{Published: 1, Dropped: 2}) {
		t.Errorf("stats = %+v", st)
	}

	if len(pub.due) != 1 {
		t.Fatalf("due events = %d, want 1", len(pub.due))
	}
	ev := pub.due[0]
	if ev.SessionID != "a" || ev.ActiveGeohash != "wh0r3qs" || ev.Urgency != "urgent" {
		t.Errorf("event = %+v", ev)
	}
	if ev.RemainingBagsNeeded != 2 || ev.TotalDonorsToNotify != 3 {
		t.Errorf("remaining %d total %d", ev.RemainingBagsNeeded, ev.TotalDonorsToNotify)
	}

	if at := q.at["a"]; !at.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("lease = %v, want now+5m", at)
	}
	if _, ok := q.at["c"]; ok {
		t.Error("terminal session should be removed")
	}
	if _, ok := q.at["missing"]; ok {
		t.Error("missing session should be removed")
	}
	if _, ok := q.at["later"]; !ok {
		t.Error("future wake-up must stay")
	}

	n, err := testutil.GatherAndCount(reg, "donorsearch_worker_due_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("worker_due series = %d, want 2 (published, dropped)", n)
	}
}

func TestProcessOnce_LeasedEntryNotDueAgain(t *testing.T) {
	q := &memQueue{at: map[string]time.Time{"a": now}}
	s := &memSessions{data: map[string]domsession.Session{"a": searching("a")}}
	pub := &recordingPublisher{}
	w := newTestWorker(q, s, pub)

	for range 3 {
		if _, err := w.ProcessOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(pub.due) != 1 {
		t.Errorf("due events = %d, want 1 within the lease", len(pub.due))
	}

	w.WithClock(func() time.Time { return now.Add(6 * time.Minute) })
	if _, err := w.ProcessOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.due) != 2 {
		t.Errorf("due events = %d, want 2 after the lease", len(pub.due))
	}
}

func TestProcessOnce_CompetingWorkers(t *testing.T) {
	q := &memQueue{at: map[string]time.Time{"a": now.Add(-time.Minute)}}
	s := &memSessions{data: map[string]domsession.Session{"a": searching("a")}}
	pubA, pubB := &recordingPublisher{}, &recordingPublisher{}

	first := newTestWorker(q, s, pubA)
	second := newTestWorker(q, s, pubB).WithClock(func() time.Time { return now.Add(time.Second) })

	// the second worker runs a whole cycle after the first has read the due batch
	var stB Stats
	q.afterDue = func() {
		var err error
		if stB, err = second.ProcessOnce(context.Background()); err != nil {
			t.Errorf("second worker: %v", err)
		}
	}

	stA, err := first.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("first worker: %v", err)
	}

	if got := len(pubA.due) + len(pubB.due); got != 1 {
		t.Fatalf("session a dispatched %d times in one due window, want 1", got)
	}
	if stA.Published != 0 || stB.Published != 1 {
		t.Errorf("first %+v, second %+v", stA, stB)
	}
	if at := q.at["a"]; !at.Equal(now.Add(time.Second + 5*time.Minute)) {
		t.Errorf("lease = %v, the winning lease must be kept", at)
	}
}

func TestProcessOnce_PublishFailureCounted(t *testing.T) {
	q := &memQueue{at: map[string]time.Time{"a": now}}
	s := &memSessions{data: map[string]domsession.Session{"a": searching("a")}}
	pub := &recordingPublisher{err: errors.New("broker down")}

	st, err := newTestWorker(q, s, pub).ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("publish failures must not fail the cycle: %v", err)
	}
	if st.Failed != 1 || st.Published != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestProcessOnce_DueError(t *testing.T) {
	q := &memQueue{dueErr: errors.New("timeout")}
	_, err := newTestWorker(q, &memSessions{}, &recordingPublisher{}).ProcessOnce(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestProcessOnce_Empty(t *testing.T) {
	q := &memQueue{at: map[string]time.Time{}}
	st, err := newTestWorker(q, &memSessions{}, &recordingPublisher{}).ProcessOnce(context.Background())
	if err != nil || st != (Stats{}) {
		t.Fatalf("stats = %+v err = %v", st, err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	q := &memQueue{at: map[string]time.Time{}}
	w := New(q, &memSessions{}, fixedTargets{}, &recordingPublisher{}, Config{Interval: time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

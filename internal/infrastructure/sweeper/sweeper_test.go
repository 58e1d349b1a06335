package sweeper

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

type stubTask struct {
	mu     sync.Mutex
	calls  int
	counts []int64
	err    error
}

func (s *stubTask) Sweep(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	if len(s.counts) == 0 {
		return 0, nil
	}
	n := s.counts[0]
	s.counts = s.counts[1:]
	return n, nil
}

func (s *stubTask) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRunOnceCountsRemovedRows(t *testing.T) {
	task := &stubTask{counts: []int64{3, 2}}
	swept := prometheus.NewCounter(prometheus.CounterOpts{Name: "swept_total"})
	s := New(Config{Task: task, Logger: zerolog.Nop(), Swept: swept})

	s.runOnce(context.Background())
	s.runOnce(context.Background())

	if got := testutil.ToFloat64(swept); got != 5 {
		t.Fatalf("expected 5 swept rows, got %v", got)
	}
}

func TestRunOnceLogsFailure(t *testing.T) {
	var logs bytes.Buffer
	task := &stubTask{err: errors.New("connection refused")}
	s := New(Config{Name: "fingerprint-sweeper", Task: task, Logger: zerolog.New(&logs)})

	s.runOnce(context.Background())

	out := logs.String()
	if !strings.Contains(out, "sweep failed") || !strings.Contains(out, `"component":"fingerprint-sweeper"`) {
		t.Fatalf("expected failure log, got %q", out)
	}
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	task := &stubTask{}
	s := New(Config{Task: task, Logger: zerolog.Nop(), Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}

	if task.Calls() < 2 {
		t.Fatalf("expected an immediate sweep and at least one tick, got %d", task.Calls())
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(Config{Task: &stubTask{}})
	if s.interval != 5*time.Minute || s.name != "sweeper" {
		t.Fatalf("unexpected defaults interval=%s name=%s", s.interval, s.name)
	}
}

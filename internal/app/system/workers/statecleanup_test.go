package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingCleaner struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleaner) CleanupExpired(ctx context.Context) (int64, error) {
	c.calls.Add(1)
	return 2, c.err
}

func TestStateCleanup_RunsUntilStopped(t *testing.T) {
	c := &countingCleaner{}
	w := NewStateCleanup(c, zap.NewNop(), 5*time.Millisecond)
	w.Start()

	deadline := time.Now().Add(2 * time.Second)
	for c.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()
	w.Stop()

	n := c.calls.Load()
	if n < 2 {
		t.Fatalf("cleanup ran %d times, want at least 2", n)
	}
	time.Sleep(20 * time.Millisecond)
	if c.calls.Load() != n {
		t.Error("cleanup kept running after Stop")
	}
}

func TestStateCleanup_ErrorIsLogged(t *testing.T) {
	c := &countingCleaner{err: errors.New("mongo down")}
	w := NewStateCleanup(c, zap.NewNop(), time.Hour)
	w.cleanup()
	if c.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", c.calls.Load())
	}
}

package observability

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestShutdownManager_Order(t *testing.T) {
	sm := NewShutdownManager(discardLogger(), time.Second)

	var order []string
	for _, name := range []string{"http", "workers", "database"} {
		name := name
		sm.Register(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	want := []string{"http", "workers", "database"}
	if len(order) != len(want) {
		t.Fatalf("Expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("step %d = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestShutdownManager_ErrorsDoNotStopLaterSteps(t *testing.T) {
	sm := NewShutdownManager(discardLogger(), time.Second)
	boom := errors.New("boom")

	ranLast := false
	sm.Register("first", func(ctx context.Context) error { return boom })
	sm.Register("last", func(ctx context.Context) error {
		ranLast = true
		return nil
	})

	err := sm.Shutdown(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}
	if !ranLast {
		t.Error("Expected later step to run")
	}

	// Second call returns the same result without running steps again
	ranLast = false
	if err2 := sm.Shutdown(context.Background()); !errors.Is(err2, boom) || ranLast {
		t.Errorf("Expected idempotent shutdown, got %v ranLast=%v", err2, ranLast)
	}
}

func TestShutdownManager_Deadline(t *testing.T) {
	sm := NewShutdownManager(discardLogger(), 20*time.Millisecond)
	sm.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	err := sm.Shutdown(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Shutdown ignored its deadline")
	}
}

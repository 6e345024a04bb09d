package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager runs cleanup steps in registration order once the process
// is asked to stop. Servers are registered first so in-flight requests finish
// before the pools they use are closed.
type ShutdownManager struct {
	logger  logrus.FieldLogger
	timeout time.Duration
	funcs   []namedShutdown
	mu      sync.Mutex
	once    sync.Once
	err     error
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger logrus.FieldLogger, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a named step
func (sm *ShutdownManager) Register(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.funcs = append(sm.funcs, namedShutdown{name: name, fn: fn})
}

// Shutdown runs every step under one deadline. Later steps still run when an
// earlier one fails. Only the first call does any work.
func (sm *ShutdownManager) Shutdown(parent context.Context) error {
	sm.once.Do(func() {
		ctx, cancel := context.WithTimeout(parent, sm.timeout)
		defer cancel()

		sm.mu.Lock()
		funcs := append([]namedShutdown(nil), sm.funcs...)
		sm.mu.Unlock()

		var errs []error
		for _, f := range funcs {
			log := sm.logger.WithField("step", f.name)
			if err := f.fn(ctx); err != nil {
				log.WithError(err).Error("Shutdown step failed")
				errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
				continue
			}
			log.Debug("Shutdown step complete")
		}

		if len(errs) > 0 {
			sm.err = errors.Join(errs...)
			return
		}
		sm.logger.Info("Graceful shutdown complete")
	})
	return sm.err
}

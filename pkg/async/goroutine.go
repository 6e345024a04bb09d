package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrPoolClosed is returned by Submit and TrySubmit after Shutdown
	ErrPoolClosed = errors.New("worker pool shut down")
	// ErrPoolFull is returned by TrySubmit when the queue has no free slot
	ErrPoolFull = errors.New("worker pool queue full")
)

var (
	loggerMu sync.RWMutex
	logger   logrus.FieldLogger = logrus.StandardLogger()
)

// SetLogger replaces the logger used to report task failures and panics.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		return
	}
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

func log() logrus.FieldLogger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// SafeGo runs fn in a goroutine with a timeout derived from parentCtx.
// Panics are recovered and errors are logged, never propagated.
//
// Example:
//
//	SafeGo(context.Background(), 30*time.Second, "password reset mail", func(ctx context.Context) error {
//	    return mailer.Send(ctx, msg)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				log().WithFields(logrus.Fields{
					"task":  taskName,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			log().WithField("task", taskName).WithError(err).Warn("background task failed")
		}
	}()
}

// WorkerPool runs submitted tasks on a fixed number of workers. The queue is
// bounded; TrySubmit never blocks the caller. Workers exit only once
// Shutdown has closed the queue and it is empty.
type WorkerPool struct {
	workers      int
	taskName     string
	timeout      time.Duration
	workCh       chan func(context.Context) error
	doneCh       chan struct{}
	errCh        chan error
	ctx          context.Context
	cancel       context.CancelFunc
	closeMu      sync.RWMutex
	closed       bool
	shutdownOnce sync.Once
}

// NewWorkerPool starts workers goroutines with a queue of queueSize slots.
// A queueSize <= 0 defaults to twice the number of workers.
//
// Example:
//
//	pool := NewWorkerPool(ctx, 4, 256, "download recorder", 5*time.Second)
//	defer pool.Shutdown(10 * time.Second)
//
//	if err := pool.TrySubmit(func(ctx context.Context) error {
//	    return record(ctx, event)
//	}); err != nil {
//	    // queue full or pool closed: drop the event
//	}
func NewWorkerPool(ctx context.Context, workers, queueSize int, taskName string, timeout time.Duration) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers * 2
	}
	ctx, cancel := context.WithCancel(ctx)

	pool := &WorkerPool{
		workers:  workers,
		taskName: taskName,
		timeout:  timeout,
		workCh:   make(chan func(context.Context) error, queueSize),
		doneCh:   make(chan struct{}),
		errCh:    make(chan error, workers*10),
		ctx:      ctx,
		cancel:   cancel,
	}

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				pool.worker(id)
			}(i)
		}
		wg.Wait()
		close(pool.doneCh)
	}()

	return pool
}

// Submit queues fn, waiting for a free slot if necessary.
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.workCh <- fn:
		return nil
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// TrySubmit queues fn only if a slot is free right now.
func (p *WorkerPool) TrySubmit(fn func(context.Context) error) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.workCh <- fn:
		return nil
	default:
		return ErrPoolFull
	}
}

// Pending returns the number of queued tasks not yet picked up by a worker.
func (p *WorkerPool) Pending() int {
	return len(p.workCh)
}

// Shutdown stops accepting tasks and waits up to timeout for queued tasks to
// drain. Workers still running at the deadline have their context cancelled.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	var shutdownErr error

	p.shutdownOnce.Do(func() {
		p.closeMu.Lock()
		p.closed = true
		close(p.workCh)
		p.closeMu.Unlock()

		select {
		case <-p.doneCh:
			p.cancel()
		case <-time.After(timeout):
			p.cancel()
			shutdownErr = fmt.Errorf("worker pool shutdown timed out after %v", timeout)
		}
	})

	return shutdownErr
}

// Errors returns a channel that receives task errors. Errors are dropped when
// nobody drains it.
func (p *WorkerPool) Errors() <-chan error {
	return p.errCh
}

// worker runs tasks until the queue is closed. A cancelled pool context does
// not stop it; queued tasks still run and observe the cancellation.
func (p *WorkerPool) worker(id int) {
	for fn := range p.workCh {
		p.run(id, fn)
	}
}

func (p *WorkerPool) run(id int, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log().WithFields(logrus.Fields{
				"task":   p.taskName,
				"worker": id,
				"panic":  r,
				"stack":  string(debug.Stack()),
			}).Error("panic in worker pool task")
			p.report(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := fn(ctx); err != nil {
		p.report(err)
	}
}

func (p *WorkerPool) report(err error) {
	select {
	case p.errCh <- err:
	default:
		log().WithField("task", p.taskName).WithError(err).Warn("worker pool error channel full, dropping error")
	}
}

// Batch runs fn for every item on a temporary pool of workers and returns the
// errors encountered.
//
// Example:
//
//	errs := Batch(ctx, gauges, 4, "catalog gauges", 10*time.Second, func(ctx context.Context, g gauge) error {
//	    return g.refresh(ctx)
//	})
func Batch[T any](ctx context.Context, items []T, workers int, taskName string, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	pool := NewWorkerPool(ctx, workers, len(items), taskName, timeout)

	for _, item := range items {
		if err := pool.Submit(func(ctx context.Context) error {
			return fn(ctx, item)
		}); err != nil {
			pool.Shutdown(timeout)
			return []error{err}
		}
	}

	// The queue holds every item, so closing it lets workers drain everything.
	pool.closeMu.Lock()
	pool.closed = true
	close(pool.workCh)
	pool.closeMu.Unlock()
	<-pool.doneCh
	pool.cancel()

	var errs []error
	for {
		select {
		case err := <-pool.errCh:
			errs = append(errs, err)
		default:
			return errs
		}
	}
}

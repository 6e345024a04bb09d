package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/spkrepo/pkg/observability"
	"github.com/platinummonkey/spkrepo/pkg/storage"
)

// Schedules holds the cron expressions of the jobs. An empty expression
// leaves the job unscheduled.
type Schedules struct {
	ResetPurge string
	Gauges     string
}

// Scheduler owns the cron runner and the jobs' dependencies
type Scheduler struct {
	cron    *cron.Cron
	store   *storage.Store
	metrics *observability.Metrics
	otel    *observability.OTelMetrics
	logger  logrus.FieldLogger
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithMetrics publishes job results to Prometheus
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithOTelMetrics also records pool samples through OpenTelemetry
func WithOTelMetrics(m *observability.OTelMetrics) Option {
	return func(s *Scheduler) { s.otel = m }
}

// WithJobTimeout bounds a single job run. Default 1 minute.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewScheduler creates a scheduler. Jobs are added by Register.
func NewScheduler(store *storage.Store, logger logrus.FieldLogger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger = logger.WithField("system", "cron")
	cl := cronLogger{logger: logger}

	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		), cron.WithLogger(cl)),
		store:   store,
		logger:  logger,
		timeout: time.Minute,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the jobs with a non-empty schedule
func (s *Scheduler) Register(schedules Schedules) error {
	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context) error
	}{
		{"purge-password-resets", schedules.ResetPurge, func(ctx context.Context) error {
			_, err := s.PurgeExpiredResets(ctx)
			return err
		}},
		{"refresh-gauges", schedules.Gauges, s.RefreshGauges},
	}

	for _, job := range jobs {
		if job.schedule == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.schedule, s.wrap(job.name, job.run)); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		s.logger.WithFields(logrus.Fields{
			"job":      job.name,
			"schedule": job.schedule,
		}).Info("Registered maintenance job")
	}
	return nil
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries returns the number of scheduled jobs
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) wrap(name string, run func(context.Context) error) func() {
	return func() {
		defer observability.RecoverPanic(s.logger, name)

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		if err := run(ctx); err != nil {
			s.logger.WithFields(logrus.Fields{
				"job":   name,
				"error": err,
			}).Error("Maintenance job failed")
			return
		}
		s.logger.WithFields(logrus.Fields{
			"job":         name,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Maintenance job completed")
	}
}

// cronLogger adapts logrus to cron.Logger
type cronLogger struct {
	logger logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}

var _ cron.Logger = cronLogger{}

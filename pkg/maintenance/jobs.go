package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/spkrepo/pkg/async"
	"github.com/platinummonkey/spkrepo/pkg/observability"
	"github.com/platinummonkey/spkrepo/pkg/storage"
)

// PurgeExpiredResets deletes password reset tokens that are past their
// expiry and returns how many were removed.
func (s *Scheduler) PurgeExpiredResets(ctx context.Context) (int64, error) {
	n, err := s.store.Session().PurgeExpiredPasswordResets(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.PasswordResetsPurgedTotal.Add(float64(n))
	}
	if n > 0 {
		s.logger.WithField("count", n).Info("Purged expired password resets")
	}
	return n, nil
}

type gauge struct {
	name   string
	count  func(*storage.Session, context.Context) (int64, error)
	metric func(*observability.Metrics) prometheus.Gauge
}

var catalogGauges = []gauge{
	{"packages", (*storage.Session).CountPackages, func(m *observability.Metrics) prometheus.Gauge { return m.PackagesTotal }},
	{"active_users", (*storage.Session).CountActiveUsers, func(m *observability.Metrics) prometheus.Gauge { return m.ActiveUsersTotal }},
	{"downloads", (*storage.Session).CountDownloads, func(m *observability.Metrics) prometheus.Gauge { return m.DownloadsStored }},
}

// RefreshGauges recounts the catalog gauges concurrently and samples the
// connection pool. A failing count leaves its gauge unchanged.
func (s *Scheduler) RefreshGauges(ctx context.Context) error {
	stats := s.store.Stats()
	if s.metrics != nil {
		s.metrics.ObservePool(stats)
	}
	if s.otel != nil {
		s.otel.RecordPool(ctx, stats)
	}

	errs := async.Batch(ctx, catalogGauges, len(catalogGauges), "catalog gauges", s.timeout, func(ctx context.Context, g gauge) error {
		n, err := g.count(s.store.Session(), ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", g.name, err)
		}
		if s.metrics != nil {
			g.metric(s.metrics).Set(float64(n))
		}
		s.logger.WithFields(logrus.Fields{
			"gauge": g.name,
			"value": n,
		}).Debug("Refreshed gauge")
		return nil
	})
	return errors.Join(errs...)
}

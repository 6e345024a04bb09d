package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/platinummonkey/spkrepo/pkg/storage"
)

// OTelMetrics holds OpenTelemetry metric instruments. They are exported
// through the meter provider installed by InitOTel.
type OTelMetrics struct {
	dbQueriesTotal     metric.Int64Counter
	dbQueryDuration    metric.Float64Histogram
	dbConnectionsInUse metric.Int64Gauge
	downloadsTotal     metric.Int64Counter
}

// NewOTelMetrics creates the instruments on meter. A nil meter uses the
// global meter provider.
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	if meter == nil {
		meter = otel.Meter("github.com/platinummonkey/spkrepo")
	}

	m := &OTelMetrics{}
	var err error

	m.dbQueriesTotal, err = meter.Int64Counter(
		"db.queries.total",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db_queries_total counter: %w", err)
	}

	m.dbQueryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db_query_duration histogram: %w", err)
	}

	m.dbConnectionsInUse, err = meter.Int64Gauge(
		"db.connections.in_use",
		metric.WithDescription("Number of database connections in use"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create db_connections_in_use gauge: %w", err)
	}

	m.downloadsTotal, err = meter.Int64Counter(
		"spkrepo.downloads.total",
		metric.WithDescription("Total number of build downloads served"),
		metric.WithUnit("{download}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create downloads_total counter: %w", err)
	}

	return m, nil
}

// ObserveQuery implements storage.Observer
func (m *OTelMetrics) ObserveQuery(operation string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("db.operation", operation),
		attribute.Bool("error", err != nil),
	)
	ctx := context.Background()
	m.dbQueriesTotal.Add(ctx, 1, attrs)
	m.dbQueryDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordPool records connection pool usage
func (m *OTelMetrics) RecordPool(ctx context.Context, stats sql.DBStats) {
	m.dbConnectionsInUse.Record(ctx, int64(stats.InUse))
}

// RecordDownload counts one served download
func (m *OTelMetrics) RecordDownload(ctx context.Context, architecture string) {
	m.downloadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("architecture", architecture)))
}

// MultiObserver fans query observations out to several observers
type MultiObserver []storage.Observer

// ObserveQuery implements storage.Observer
func (mo MultiObserver) ObserveQuery(operation string, duration time.Duration, err error) {
	for _, o := range mo {
		if o != nil {
			o.ObserveQuery(operation, duration, err)
		}
	}
}

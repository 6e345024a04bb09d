package observability

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitOTel_Disabled(t *testing.T) {
	logger, hook := test.NewNullLogger()

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)
	require.NoError(t, err)
	assert.Nil(t, providers)
	assert.Equal(t, "OpenTelemetry is disabled", hook.LastEntry().Message)

	assert.NoError(t, ShutdownOTel(context.Background(), providers, logger))
}

func TestShutdownOTel_TracerOnly(t *testing.T) {
	logger, hook := test.NewNullLogger()
	providers := &OTelProviders{TracerProvider: sdktrace.NewTracerProvider()}

	require.NoError(t, ShutdownOTel(context.Background(), providers, logger))
	assert.Equal(t, "OpenTelemetry shutdown complete", hook.LastEntry().Message)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{1.5, "AlwaysOnSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}

	for _, tt := range tests {
		got := sampler(tt.ratio).Description()
		assert.Contains(t, got, tt.want, "ratio %v", tt.ratio)
	}
}

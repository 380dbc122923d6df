package instrumentation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T, detailed bool) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp.Meter("test"), detailed)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// sumFor returns the counter value for the data point carrying all the given attributes.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	m, ok := findMetric(rm, name)
	require.True(t, ok, "metric %s not found", name)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", name)

	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, kv := range attrs {
			v, found := dp.Attributes.Value(kv.Key)
			if !found || v.Emit() != kv.Value.Emit() {
				match = false
				break
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordHTTPRequest(ctx, "GET", "/", 200, 10*time.Millisecond)
	m.RecordHTTPRequest(ctx, "GET", "/", 200, 12*time.Millisecond)
	m.RecordHTTPRequest(ctx, "POST", "/files/upload", 500, 50*time.Millisecond)

	rm := collect(t, reader)
	assert.Equal(t, int64(2), sumFor(t, rm, "http_requests_total", attribute.String("path", "/"), attribute.String("status", "200")))
	assert.Equal(t, int64(1), sumFor(t, rm, "http_requests_total", attribute.String("method", "POST"), attribute.String("status", "500")))

	_, ok := findMetric(rm, "http_request_duration_seconds")
	assert.True(t, ok)
}

func TestMetrics_RecordDriveOperation(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordDriveOperation(ctx, OperationList, StatusSuccess, 100*time.Millisecond)
	m.RecordDriveOperation(ctx, OperationUpload, StatusError, 300*time.Millisecond)
	m.RecordDriveOperation(ctx, OperationDelete, StatusCancelled, 0)

	rm := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, rm, "drive_api_operations_total", attribute.String("operation", OperationList), attribute.String("status", StatusSuccess)))
	assert.Equal(t, int64(1), sumFor(t, rm, "drive_api_operations_total", attribute.String("operation", OperationUpload), attribute.String("status", StatusError)))
	assert.Equal(t, int64(1), sumFor(t, rm, "drive_api_operations_total", attribute.String("status", StatusCancelled)))
}

func TestMetrics_RecordUpload_DetailedLabels(t *testing.T) {
	tests := []struct {
		name         string
		detailed     bool
		wantMimeAttr bool
	}{
		{name: "default labels", detailed: false, wantMimeAttr: false},
		{name: "detailed labels", detailed: true, wantMimeAttr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, reader := newTestMetrics(t, tt.detailed)
			m.RecordUpload(context.Background(), "image/png", 2048)

			rm := collect(t, reader)
			metric, ok := findMetric(rm, "drive_upload_size_bytes")
			require.True(t, ok)
			hist, ok := metric.Data.(metricdata.Histogram[int64])
			require.True(t, ok)
			require.Len(t, hist.DataPoints, 1)

			assert.Equal(t, int64(2048), hist.DataPoints[0].Sum)
			_, hasMime := hist.DataPoints[0].Attributes.Value("mime_type")
			assert.Equal(t, tt.wantMimeAttr, hasMime)
		})
	}
}

func TestMetrics_OAuth(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.RecordOAuthAuth(ctx, OAuthResultSuccess)
	m.RecordOAuthAuth(ctx, OAuthResultFailure)
	m.RecordOAuthTokenRefresh(ctx, OAuthResultSkipped)

	rm := collect(t, reader)
	assert.Equal(t, int64(1), sumFor(t, rm, "oauth_auth_total", attribute.String("result", OAuthResultSuccess)))
	assert.Equal(t, int64(1), sumFor(t, rm, "oauth_auth_total", attribute.String("result", OAuthResultFailure)))
	assert.Equal(t, int64(1), sumFor(t, rm, "oauth_token_refresh_total", attribute.String("result", OAuthResultSkipped)))
}

func TestMetrics_ActiveSessions(t *testing.T) {
	m, reader := newTestMetrics(t, false)
	ctx := context.Background()

	m.IncrementActiveSessions(ctx)
	m.IncrementActiveSessions(ctx)
	m.DecrementActiveSessions(ctx)

	assert.Equal(t, int64(1), sumFor(t, collect(t, reader), "active_sessions"))
}

func TestMetrics_NoOp(t *testing.T) {
	ctx := context.Background()

	// Neither the zero value nor a nil recorder may panic
	for _, m := range []*Metrics{{}, nil} {
		m.RecordHTTPRequest(ctx, "GET", "/", 200, time.Millisecond)
		m.RecordDriveOperation(ctx, OperationList, StatusSuccess, time.Millisecond)
		m.RecordUpload(ctx, "text/plain", 1)
		m.RecordOAuthAuth(ctx, OAuthResultSuccess)
		m.RecordOAuthTokenRefresh(ctx, OAuthResultSuccess)
		m.IncrementActiveSessions(ctx)
		m.DecrementActiveSessions(ctx)
	}
}

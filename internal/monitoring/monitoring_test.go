package monitoring_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remodlai/nova-gateway/internal/monitoring"
)

// =============================================================================
// LOGGER TESTS
// =============================================================================

func TestLogger_LevelParsing(t *testing.T) {
	tests := []struct {
		name  string
		level string
	}{
		{name: "debug", level: "debug"},
		{name: "info", level: "info"},
		{name: "warn", level: "warn"},
		{name: "invalid falls back to info", level: "not-a-level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := monitoring.New(monitoring.LoggerConfig{Level: tt.level})
			require.NotNil(t, logger)
			// Must not panic when emitting events.
			logger.Info().Str("k", "v").Msg("test_event")
		})
	}
}

func TestLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")
	logger := monitoring.New(monitoring.LoggerConfig{Level: "info", Output: path})

	logger.Info().Str("model", "nova-embeddings-v1").Msg("routed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"model":"nova-embeddings-v1"`)
	assert.Contains(t, string(data), "routed")
}

func TestLogger_Component(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")
	logger := monitoring.New(monitoring.LoggerConfig{Level: "debug", Output: path})

	logger.Component("router").Debug().Msg("candidates_filtered")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"router"`)
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, monitoring.RequestIDFromContext(ctx))

	ctx = monitoring.WithRequestIDContext(ctx, "req-123")
	assert.Equal(t, "req-123", monitoring.RequestIDFromContext(ctx))
}

// =============================================================================
// METRICS TESTS
// =============================================================================

func TestMetricsCollector_Handler(t *testing.T) {
	mc := monitoring.NewMetricsCollector()

	mc.RecordRequest("completion", 200, 120*time.Millisecond)
	mc.RecordRequest("completion", 502, 80*time.Millisecond)
	mc.RecordRoutingDecision("nova-embeddings-v1", "least-busy")
	mc.SetDeploymentInFlight("dep-a", 3)
	mc.RecordHookRejection("guardrail")
	mc.RecordStreamChunks(5)

	srv := httptest.NewServer(mc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		body.WriteString(scanner.Text())
		body.WriteString("\n")
	}
	out := body.String()

	assert.Contains(t, out, `nova_gateway_requests_total{call_type="completion",status_class="2xx"} 1`)
	assert.Contains(t, out, `nova_gateway_requests_total{call_type="completion",status_class="5xx"} 1`)
	assert.Contains(t, out, `nova_gateway_routing_decisions_total{model="nova-embeddings-v1",strategy="least-busy"} 1`)
	assert.Contains(t, out, `nova_gateway_deployment_in_flight{deployment="dep-a"} 3`)
	assert.Contains(t, out, `nova_gateway_hook_rejections_total{hook="guardrail"} 1`)
	assert.Contains(t, out, `nova_gateway_stream_chunks_total 5`)
}

func TestMetricsCollector_IsolatedRegistries(t *testing.T) {
	// Two collectors must not share state or panic on duplicate registration.
	a := monitoring.NewMetricsCollector()
	b := monitoring.NewMetricsCollector()
	a.RecordRequest("embeddings", 200, time.Millisecond)
	b.RecordRequest("embeddings", 200, time.Millisecond)
}

// =============================================================================
// TELEMETRY TESTS
// =============================================================================

func TestTracker_RecordRouting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled: true,
		LogPath: path,
	})
	require.NoError(t, err)

	tracker.RecordRouting(&monitoring.RoutingEvent{
		RequestID:    "req-1",
		Timestamp:    time.Now(),
		CallType:     "embeddings",
		Model:        "nova-embeddings-v1",
		Tags:         []string{"retrieval.query"},
		DeploymentID: "dep-a",
		Strategy:     "simple-shuffle",
		StatusCode:   200,
		Success:      true,
	})
	tracker.RecordRouting(&monitoring.RoutingEvent{
		RequestID:  "req-2",
		Timestamp:  time.Now(),
		CallType:   "completion",
		Model:      "nova-chat",
		StatusCode: 400,
		Success:    false,
		Error:      "no deployment found",
	})
	require.NoError(t, tracker.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first monitoring.RoutingEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "req-1", first.RequestID)
	assert.Equal(t, "dep-a", first.DeploymentID)
	assert.Equal(t, []string{"retrieval.query"}, first.Tags)
	assert.True(t, first.Success)

	var second monitoring.RoutingEvent
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "no deployment found", second.Error)
}

func TestTracker_DisabledWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.jsonl")
	tracker, err := monitoring.NewTracker(monitoring.TelemetryConfig{
		Enabled: false,
		LogPath: path,
	})
	require.NoError(t, err)

	tracker.RecordRouting(&monitoring.RoutingEvent{RequestID: "req-1"})
	require.NoError(t, tracker.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

// =============================================================================
// ALERT TESTS
// =============================================================================

func TestAlertManager_HighLatencyThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.log")
	logger := monitoring.New(monitoring.LoggerConfig{Level: "debug", Output: path})
	am := monitoring.NewAlertManager(logger, monitoring.AlertConfig{
		HighLatencyThreshold: 100 * time.Millisecond,
	})

	am.FlagHighLatency("req-fast", 50*time.Millisecond, "dep-a", "/v1/embeddings")
	am.FlagHighLatency("req-slow", 250*time.Millisecond, "dep-a", "/v1/embeddings")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "req-fast")
	assert.Contains(t, string(data), "req-slow")
	assert.Contains(t, string(data), "high_latency")
}

func TestAlertManager_WebhookThrottled(t *testing.T) {
	var hits int
	received := make(chan struct{}, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		received <- struct{}{}
	}))
	defer srv.Close()

	logger := monitoring.New(monitoring.LoggerConfig{Level: "error", Output: "stderr"})
	am := monitoring.NewAlertManager(logger, monitoring.AlertConfig{
		WebhookURL:         srv.URL,
		WebhookMinInterval: time.Hour,
	})

	am.FlagHookFailure("req-1", "audit_log", assert.AnError)
	am.FlagHookFailure("req-2", "audit_log", assert.AnError)

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never called")
	}
	// Second delivery suppressed by the interval.
	select {
	case <-received:
		t.Fatal("webhook called twice within min interval")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 1, hits)
}

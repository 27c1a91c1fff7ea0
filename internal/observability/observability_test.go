package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/access-gate/gate"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "json", level: "info", format: "json"},
		{name: "console", level: "debug", format: "console"},
		{name: "default format", level: "warn", format: ""},
		{name: "bad level", level: "loud", format: "json", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestMetricsObserveDecision(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	m.ObserveDecision(ctx, gate.Decision{Gate: "reports", Allowed: true, Reason: gate.ReasonAllowed})
	m.ObserveDecision(ctx, gate.Decision{Gate: "reports", Reason: gate.ReasonNoUser})
	m.ObserveDecision(ctx, gate.Decision{Gate: "reports", Reason: gate.ReasonNoUser})
	m.ObserveDecision(ctx, gate.Decision{Gate: "reports", Reason: gate.ReasonDenied})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("reports", "allow")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.decisions.WithLabelValues("reports", "deny")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.denied.WithLabelValues("reports", gate.ReasonNoUser)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.denied.WithLabelValues("reports", gate.ReasonDenied)))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()
	m.ObserveDecision(context.Background(), gate.Decision{Gate: "account", Allowed: true})

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `accessgate_decisions_total{decision="allow",gate="account"} 1`)
}

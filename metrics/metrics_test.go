package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastResult(t *testing.T) {
	t.Parallel()
	m := New()

	m.BroadcastResult(8302, "Buy", nil)
	m.BroadcastResult(8302, "Buy", nil)
	m.BroadcastResult(8303, "Buy", errors.New("refused"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Broadcasts.WithLabelValues("8302", "Buy", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Broadcasts.WithLabelValues("8303", "Buy", "error")))
}

func TestGauges(t *testing.T) {
	t.Parallel()
	m := New()

	m.ListenerStatus("webhook")(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListenerUp.WithLabelValues("webhook")))
	m.ListenerStatus("webhook")(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ListenerUp.WithLabelValues("webhook")))

	SetBool(m.KillSwitch, true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KillSwitch))
}

func TestHandlerExposesRegistry(t *testing.T) {
	t.Parallel()
	m := New()
	m.SignalsExecuted.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "signalbot_signals_executed_total 1")
}

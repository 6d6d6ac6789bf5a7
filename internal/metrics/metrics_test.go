package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/callrelay/internal/core"
)

func TestRecorderCounters(t *testing.T) {
	m := New()

	m.CallInitiated()
	m.CallInitiated()
	m.CallAccepted()
	m.CallRejected()
	m.CallFailed(core.ReasonUserBusy)
	m.CallEnded(core.EndCauseHangup)
	m.CallEnded(core.EndCauseHangup)
	m.IdentitiesOnline(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.callsInitiated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callsFailed.WithLabelValues(core.ReasonUserBusy)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.callsEnded.WithLabelValues(core.EndCauseHangup)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.online))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.CallFailed(core.ReasonNoAnswer)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, `callrelay_calls_failed_total{reason="no_answer"} 1`), text)
	assert.Contains(t, text, "callrelay_identities_online 0")
	assert.Contains(t, text, "go_goroutines")
}

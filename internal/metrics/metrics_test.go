package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(relaySessions.WithLabelValues("chat", "done"))
	RelaySession(" Chat ", "DONE")
	assert.Equal(t, before+1, testutil.ToFloat64(relaySessions.WithLabelValues("chat", "done")))

	before = testutil.ToFloat64(jobTransitions.WithLabelValues("failed"))
	JobTransition("failed")
	assert.Equal(t, before+1, testutil.ToFloat64(jobTransitions.WithLabelValues("failed")))

	before = testutil.ToFloat64(httpRequests.WithLabelValues("unmatched", "GET", "404"))
	HTTPRequest("", "GET", 404)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("unmatched", "GET", "404")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	MustRegister()
	MustRegister()

	RelayFrame("formula")
	ObserveProviderCall("stream", "gemini-3-flash-preview", time.Now(), errors.New("boom"))

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `relay_frames_total{endpoint="formula"}`)
	assert.Contains(t, body, `provider_call_latency_ms_count{model="gemini-3-flash-preview",operation="stream",success="false"}`)
}

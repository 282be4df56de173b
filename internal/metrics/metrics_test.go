package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackPurchase(t *testing.T) {
	before := testutil.ToFloat64(ticketsIssued)

	TrackPurchase("ok", 3)
	TrackPurchase("capacity_exceeded", 0)

	assert.Equal(t, before+3, testutil.ToFloat64(ticketsIssued))
	assert.GreaterOrEqual(t, testutil.ToFloat64(purchases.WithLabelValues("capacity_exceeded")), 1.0)
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveHTTP(http.MethodGet, "/api/events", "200", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tixmarket_http_requests_total"))
}

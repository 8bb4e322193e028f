package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPaymentsCounters(t *testing.T) {
	m := NewPayments()
	m.CreatedTotal.Inc()
	m.VerifiedTotal.WithLabelValues(OutcomePaid).Inc()
	m.VerifiedTotal.WithLabelValues(OutcomePaid).Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CreatedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.VerifiedTotal.WithLabelValues(OutcomePaid)))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "bazaar_payments_created_total 1")
}

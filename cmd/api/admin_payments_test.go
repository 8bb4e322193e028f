package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bazaar/internal/domain/paymentsrepo"
	"bazaar/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listPaymentsResponse struct {
	Data struct {
		Payments   []paymentsrepo.Payment `json:"payments"`
		Pagination params.Pagination      `json:"pagination"`
	} `json:"data"`
}

func TestAdminListPayments(t *testing.T) {
	ts := newTestServer(t)

	paid := ts.createPayment(t, "ORD1", 100)
	ts.createPayment(t, "ORD2", 200)
	ts.createPayment(t, "ORD3", 300)
	ts.verify(t, ts.signedCallback(t, paid, "success", "100"))

	admin := ts.token(t, "admin")

	rr := ts.sendJSON(t, http.MethodGet, "/v1/payments?limit=2", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var res listPaymentsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Len(t, res.Data.Payments, 2)
	assert.Equal(t, "ORD3", res.Data.Payments[0].OrderID)
	assert.Equal(t, 3, res.Data.Pagination.Total)
	assert.Equal(t, 2, res.Data.Pagination.TotalPages)
	assert.True(t, res.Data.Pagination.HasNext)

	rr = ts.sendJSON(t, http.MethodGet, "/v1/payments?status=paid", admin, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	res = listPaymentsResponse{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.Len(t, res.Data.Payments, 1)
	assert.Equal(t, paid.TxnID, res.Data.Payments[0].TxnID)
	assert.Empty(t, res.Data.Payments[0].Hash)

	rr = ts.sendJSON(t, http.MethodGet, "/v1/payments?status=refunded", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminListPaymentsRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.sendJSON(t, http.MethodGet, "/v1/payments", ts.token(t, "customer"), nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, codeForbidden, decodeError(t, rr).Code)

	rr = ts.sendJSON(t, http.MethodGet, "/v1/payments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHealthAndOpsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.sendJSON(t, http.MethodGet, "/v1/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var health struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Data["status"])
	assert.Equal(t, "memory", health.Data["storage"])

	rr = ts.sendJSON(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("ops", "secret")
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bazaar_payments_created_total")
}

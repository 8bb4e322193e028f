package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"bazaar/internal/domain/paymentsrepo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toForm(body map[string]any) url.Values {
	form := url.Values{}
	for k, v := range body {
		if k == "action" {
			continue
		}
		form.Set(k, fmt.Sprint(v))
	}
	return form
}

func redirectQuery(t *testing.T, location string) url.Values {
	t.Helper()
	u, err := url.Parse(location)
	require.NoError(t, err)
	assert.Equal(t, "shop.test", u.Host)
	assert.Equal(t, "/payments/return", u.Path)
	return u.Query()
}

func TestPayUStartRendersSignedForm(t *testing.T) {
	ts := newTestServer(t)
	req := ts.createPayment(t, "ORD1", "100.50")

	rr := ts.sendJSON(t, http.MethodGet, "/v1/payments/payu/start?txnid="+req.TxnID, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))

	html := rr.Body.String()
	assert.Contains(t, html, `action="https://test.payu.in/_payment"`)
	for name, value := range req.FormFields() {
		assert.Contains(t, html, fmt.Sprintf(`name=%q`, name))
		if name != "surl" && name != "furl" {
			assert.Contains(t, html, fmt.Sprintf(`value=%q`, value))
		}
	}
}

func TestPayUStartUnknownAndClosed(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.sendJSON(t, http.MethodGet, "/v1/payments/payu/start", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.sendJSON(t, http.MethodGet, "/v1/payments/payu/start?txnid=TXN_NOPE_1", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	req := ts.createPayment(t, "ORD1", 100)
	ts.verify(t, ts.signedCallback(t, req, "success", "100"))

	rr = ts.sendJSON(t, http.MethodGet, "/v1/payments/payu/start?txnid="+req.TxnID, "", nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	q := redirectQuery(t, rr.Header().Get("Location"))
	assert.Equal(t, resultSuccess, q.Get("result"))
	assert.Equal(t, "already_paid", q.Get("reason"))
}

func TestPayUReturnSuccess(t *testing.T) {
	ts := newTestServer(t)
	req := ts.createPayment(t, "ORD1", 100)

	rr := ts.sendForm(t, "/v1/payments/payu/success", toForm(ts.signedCallback(t, req, "success", "100")))
	require.Equal(t, http.StatusSeeOther, rr.Code)

	q := redirectQuery(t, rr.Header().Get("Location"))
	assert.Equal(t, resultSuccess, q.Get("result"))
	assert.Equal(t, req.TxnID, q.Get("txnid"))

	stored, err := ts.app.store.Payments.GetByTxnID(context.Background(), req.TxnID)
	require.NoError(t, err)
	assert.Equal(t, paymentsrepo.StatusPaid, stored.Status)

	var redirects int
	for _, l := range ts.app.store.Memory().Logs(stored.ID) {
		if l.LogType == paymentsrepo.LogRedirect {
			redirects++
		}
	}
	assert.Equal(t, 1, redirects)
}

func TestPayUReturnFailures(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status string
		mutate func(url.Values)
		reason string
		stored string
	}{
		{"gateway failure", "/v1/payments/payu/failure", "failure", func(url.Values) {}, "", paymentsrepo.StatusFailed},
		{"forged success", "/v1/payments/payu/success", "failure", func(f url.Values) { f.Set("status", "success") }, "verification_failed", paymentsrepo.StatusPending},
		{"missing hash", "/v1/payments/payu/success", "success", func(f url.Values) { f.Del("hash") }, "missing_fields", paymentsrepo.StatusPending},
		{"unknown txn", "/v1/payments/payu/success", "success", func(f url.Values) { f.Set("txnid", "TXN_NOPE_1") }, "payment_not_found", paymentsrepo.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			req := ts.createPayment(t, "ORD1", 100)

			form := toForm(ts.signedCallback(t, req, tt.status, "100"))
			tt.mutate(form)

			rr := ts.sendForm(t, tt.path, form)
			require.Equal(t, http.StatusSeeOther, rr.Code)

			q := redirectQuery(t, rr.Header().Get("Location"))
			assert.Equal(t, resultFailed, q.Get("result"))
			if tt.reason != "" {
				assert.Equal(t, tt.reason, q.Get("reason"))
			}

			stored, err := ts.app.store.Payments.GetByTxnID(context.Background(), req.TxnID)
			require.NoError(t, err)
			assert.Equal(t, tt.stored, stored.Status)
		})
	}
}

func TestPayUForgedFailureKeepsCheckoutOpen(t *testing.T) {
	ts := newTestServer(t)
	req := ts.createPayment(t, "ORD9", 100)

	rr := ts.sendForm(t, "/v1/payments/payu/failure", url.Values{
		"status":   {"failure"},
		"txnid":    {req.TxnID},
		"amount":   {"100"},
		"hash":     {"deadbeef"},
		"mihpayid": {"ATTACKER-REF"},
	})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	q := redirectQuery(t, rr.Header().Get("Location"))
	assert.Equal(t, resultFailed, q.Get("result"))
	assert.Equal(t, "verification_failed", q.Get("reason"))

	stored, err := ts.app.store.Payments.GetByTxnID(context.Background(), req.TxnID)
	require.NoError(t, err)
	assert.Equal(t, paymentsrepo.StatusPending, stored.Status)
	assert.Nil(t, stored.GatewayRef)

	rr = ts.sendJSON(t, http.MethodGet, "/v1/payments/payu/start?txnid="+req.TxnID, "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `action="https://test.payu.in/_payment"`)

	// the real callback still settles the payment afterwards
	rr = ts.sendForm(t, "/v1/payments/payu/success", toForm(ts.signedCallback(t, req, "success", "100")))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, resultSuccess, redirectQuery(t, rr.Header().Get("Location")).Get("result"))
}

func TestPayUReturnInFlightIsPending(t *testing.T) {
	ts := newTestServer(t)
	req := ts.createPayment(t, "ORD1", 100)
	body := ts.signedCallback(t, req, "success", "100")

	ts.replay.hold("verify:" + req.TxnID + ":" + body["hash"].(string))

	rr := ts.sendForm(t, "/v1/payments/payu/success", toForm(body))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, resultPending, redirectQuery(t, rr.Header().Get("Location")).Get("result"))
}

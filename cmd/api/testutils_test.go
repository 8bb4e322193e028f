package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"bazaar/internal/auth"
	"bazaar/internal/domain/storage"
	"bazaar/internal/idempotency"
	"bazaar/internal/metrics"
	"bazaar/internal/payments"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testKey      = "KEY"
	testSalt     = "S"
	testFrontend = "http://shop.test"
	testAPI      = "http://api.test"
)

type testServer struct {
	app    *application
	mux    http.Handler
	payu   *payments.PayUAdapter
	mailer *fakeMailer
	replay *fakeReplayCache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config{
		addr:        ":0",
		env:         "test",
		apiURL:      testAPI,
		frontendURL: testFrontend,
		auth: authConfig{
			basic: basicConfig{user: "ops", pass: "secret"},
			token: tokenConfig{secret: "test-secret", iss: "bazaar"},
		},
		payu: payments.PayUConfig{
			MerchantKey:  testKey,
			Salt:         testSalt,
			DefaultPhone: "9999999999",
			SuccessURL:   testAPI + "/v1/payments/payu/success",
			FailureURL:   testAPI + "/v1/payments/payu/failure",
		},
	}

	payu, err := payments.NewPayUAdapter(cfg.payu)
	require.NoError(t, err)

	manager := payments.NewPaymentManager()
	manager.RegisterGateway(payments.ProviderPayU, payu)

	ts := &testServer{
		payu:   payu,
		mailer: &fakeMailer{},
		replay: newFakeReplayCache(),
	}
	ts.app = &application{
		config:        cfg,
		store:         storage.NewMemoryContainer(),
		logger:        zap.NewNop().Sugar(),
		payments:      manager,
		authenticator: auth.NewJWTAuthenticator(cfg.auth.token.secret, cfg.auth.token.iss),
		replay:        ts.replay,
		mailer:        ts.mailer,
		metrics:       metrics.NewPayments(),
	}
	ts.mux = ts.app.mount()
	return ts
}

func (ts *testServer) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := ts.app.authenticator.GenerateToken("user-1", role, time.Hour)
	require.NoError(t, err)
	return tok
}

// sendJSON performs a request against the router and returns the recorded
// response. An empty token sends no Authorization header.
func (ts *testServer) sendJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, req)
	return rr
}

func (ts *testServer) sendForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rr := httptest.NewRecorder()
	ts.mux.ServeHTTP(rr, req)
	return rr
}

// createPayment runs a create-payment action and returns the signed request.
func (ts *testServer) createPayment(t *testing.T, orderID string, amount any) payments.PaymentRequest {
	t.Helper()

	rr := ts.sendJSON(t, http.MethodPost, "/v1/payments", ts.token(t, "customer"), map[string]any{
		"action":      actionCreatePayment,
		"orderId":     orderID,
		"amount":      amount,
		"productInfo": "Book",
		"firstName":   "Jane",
		"email":       "jane@x.com",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res createPaymentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	require.True(t, res.Success)
	return res.PaymentData
}

// signedCallback builds the callback the gateway would post for req.
func (ts *testServer) signedCallback(t *testing.T, req payments.PaymentRequest, status, amount string) map[string]any {
	t.Helper()

	cb := payments.Callback{GatewayTxnID: "403993715", Status: status, TxnID: req.TxnID, Amount: amount}
	hash, err := ts.payu.SignCallback(cb, payments.Original{
		Email:       req.Email,
		FirstName:   req.FirstName,
		ProductInfo: req.ProductInfo,
	})
	require.NoError(t, err)

	return map[string]any{
		"action":      actionVerifyPayment,
		"mihpayid":    cb.GatewayTxnID,
		"status":      status,
		"txnid":       req.TxnID,
		"amount":      amount,
		"hash":        hash,
		"email":       req.Email,
		"firstname":   req.FirstName,
		"productinfo": req.ProductInfo,
	}
}

func (ts *testServer) verify(t *testing.T, body map[string]any) verifyPaymentResponse {
	t.Helper()

	rr := ts.sendJSON(t, http.MethodPost, "/v1/payments", ts.token(t, "customer"), body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res verifyPaymentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	return res
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

type sentMail struct {
	template string
	to       string
	data     any
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(templateFile, email string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{template: templateFile, to: email, data: data})
	return nil
}

func (m *fakeMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

const fakePending = "pending"

// fakeReplayCache follows the claim protocol of idempotency.Cache in memory.
type fakeReplayCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newFakeReplayCache() *fakeReplayCache {
	return &fakeReplayCache{entries: make(map[string]string)}
}

func (c *fakeReplayCache) Claim(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]
	switch {
	case !ok:
		c.entries[key] = fakePending
		return nil, nil
	case v == fakePending:
		return nil, idempotency.ErrInFlight
	default:
		return []byte(v), nil
	}
}

func (c *fakeReplayCache) Complete(ctx context.Context, key string, result []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = string(result)
	return nil
}

func (c *fakeReplayCache) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *fakeReplayCache) hold(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = fakePending
}

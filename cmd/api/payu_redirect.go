package main

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bazaar/internal/domain/paymentsrepo"
	"bazaar/internal/payments"
)

const (
	resultSuccess = "success"
	resultFailed  = "failed"
	resultPending = "pending"
)

var autoPostForm = template.Must(template.New("autopost").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Redirecting…</title>
  <style>
    body { font-family: -apple-system, system-ui, Segoe UI, Roboto, Arial; padding: 24px; }
    .box { max-width: 480px; margin: 40px auto; text-align: center; }
  </style>
</head>
<body>
  <div class="box">
    <h3>Redirecting to PayU…</h3>
    <p>Please wait.</p>

    <form id="f" method="POST" action="{{.Action}}">
      {{range $k, $v := .Fields}}
        <input type="hidden" name="{{$k}}" value="{{$v}}">
      {{end}}
      <noscript><button type="submit">Continue</button></noscript>
    </form>

    <script>
      (function(){ document.getElementById('f').submit(); })();
    </script>
  </div>
</body>
</html>`))

// redirectToFrontend sends the browser back to the storefront's return page.
// result is one of success, failed or pending; anything else becomes pending.
func (app *application) redirectToFrontend(w http.ResponseWriter, r *http.Request, result, txnID, reason string) {
	switch result {
	case resultSuccess, resultFailed, resultPending:
	default:
		result = resultPending
	}

	q := url.Values{}
	q.Set("result", result)
	if txnID != "" {
		q.Set("txnid", txnID)
	}
	if reason != "" {
		q.Set("reason", reason)
	}

	target := strings.TrimRight(app.config.frontendURL, "/") + "/payments/return?" + q.Encode()

	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.Header().Set("Referrer-Policy", "no-referrer")
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// payuStartHandler renders the auto-submitting form for a stored, still
// pending request. The form carries the exact fields that were signed.
//
//	GET /v1/payments/payu/start?txnid=TXN_...
func (app *application) payuStartHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	txnID := strings.TrimSpace(r.URL.Query().Get("txnid"))
	if txnID == "" {
		app.badRequestResponse(w, r, errors.New("txnid is required"))
		return
	}

	pay, err := app.store.Payments.GetByTxnID(ctx, txnID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if pay == nil {
		app.notFoundResponse(w, r, fmt.Errorf("payment %s not found", txnID))
		return
	}

	switch pay.Status {
	case paymentsrepo.StatusPending:
	case paymentsrepo.StatusPaid:
		app.redirectToFrontend(w, r, resultSuccess, txnID, "already_paid")
		return
	default:
		app.redirectToFrontend(w, r, resultFailed, txnID, "attempt_closed")
		return
	}

	action, err := app.payments.FormAction(pay.Provider)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	req := payments.PaymentRequest{
		Key:         pay.MerchantKey,
		TxnID:       pay.TxnID,
		Amount:      pay.Amount,
		ProductInfo: pay.ProductInfo,
		FirstName:   pay.FirstName,
		Email:       pay.Email,
		Phone:       pay.Phone,
		SuccessURL:  pay.SuccessURL,
		FailureURL:  pay.FailureURL,
		Hash:        pay.Hash,
	}

	if err := app.store.PayLogs.InsertPaymentLog(ctx, pay.ID, paymentsrepo.LogRedirect, map[string]any{
		"stage":  "start",
		"action": action,
	}); err != nil {
		app.logger.Warnw("failed to log gateway redirect", "txnid", txnID, "error", err.Error())
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.WriteHeader(http.StatusOK)

	if err := autoPostForm.Execute(w, map[string]any{
		"Action": action,
		"Fields": req.FormFields(),
	}); err != nil {
		app.logger.Errorw("failed to render gateway form", "txnid", txnID, "error", err.Error())
	}
}

// payuReturnHandler receives the gateway's form post on surl or furl. The
// browser always ends up on the storefront; the signature decides what
// result it is shown.
//
//	POST /v1/payments/payu/success
//	POST /v1/payments/payu/failure
func (app *application) payuReturnHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		app.redirectToFrontend(w, r, resultFailed, "", "invalid_form")
		return
	}

	cb := payments.Callback{
		GatewayTxnID: strings.TrimSpace(r.PostForm.Get("mihpayid")),
		Status:       strings.TrimSpace(r.PostForm.Get("status")),
		TxnID:        strings.TrimSpace(r.PostForm.Get("txnid")),
		Amount:       strings.TrimSpace(r.PostForm.Get("amount")),
		Hash:         strings.TrimSpace(r.PostForm.Get("hash")),
	}
	if cb.TxnID == "" || cb.Hash == "" || cb.Status == "" {
		app.redirectToFrontend(w, r, resultFailed, cb.TxnID, "missing_fields")
		return
	}

	echo := payments.Original{
		Email:       r.PostForm.Get("email"),
		FirstName:   r.PostForm.Get("firstname"),
		ProductInfo: r.PostForm.Get("productinfo"),
	}

	res, err := app.verifyCallback(ctx, sourceRedirect, cb, echo)
	switch {
	case errors.Is(err, errCallbackInFlight):
		app.redirectToFrontend(w, r, resultPending, cb.TxnID, "processing")
		return
	case err != nil:
		app.logger.Errorw("gateway return failed", "txnid", cb.TxnID, "error", err.Error())
		app.redirectToFrontend(w, r, resultPending, cb.TxnID, "verification_error")
		return
	}

	switch {
	case res.Success:
		app.redirectToFrontend(w, r, resultSuccess, cb.TxnID, "")
	case res.Verified && res.Message != msgAmountMismatch:
		app.redirectToFrontend(w, r, resultFailed, cb.TxnID, "")
	case res.Message == msgUnknownTxn:
		app.redirectToFrontend(w, r, resultFailed, cb.TxnID, "payment_not_found")
	default:
		app.redirectToFrontend(w, r, resultFailed, cb.TxnID, "verification_failed")
	}
}

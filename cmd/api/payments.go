package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bazaar/internal/domain/paymentsrepo"
	"bazaar/internal/domain/storage"
	"bazaar/internal/idempotency"
	"bazaar/internal/metrics"
	"bazaar/internal/payments"
)

const (
	actionCreatePayment = "create-payment"
	actionVerifyPayment = "verify-payment"

	// callback sources, recorded in the payment log
	sourceAPI      = "api"
	sourceRedirect = "redirect"
)

// Messages returned in verifyPaymentResponse.Message.
const (
	msgVerified       = "payment verified"
	msgNotSuccessful  = "payment was not successful"
	msgUnverified     = "payment verification failed"
	msgAmountMismatch = "amount mismatch"
	msgUnknownTxn     = "unknown transaction"
)

var errCallbackInFlight = errors.New("callback is already being processed")

type actionEnvelope struct {
	Action string `json:"action"`
}

type createPaymentPayload struct {
	Action      string          `json:"action"`
	OrderID     string          `json:"orderId" validate:"required,max=64,excludesall=0x7C"`
	Amount      payments.Amount `json:"amount"`
	ProductInfo string          `json:"productInfo" validate:"required,max=100,excludesall=0x7C"`
	FirstName   string          `json:"firstName" validate:"required,max=60,excludesall=0x7C"`
	Email       string          `json:"email" validate:"required,email,max=100,excludesall=0x7C"`
	Phone       string          `json:"phone" validate:"omitempty,max=20"`
	SuccessURL  string          `json:"successUrl" validate:"omitempty,url"`
	FailureURL  string          `json:"failureUrl" validate:"omitempty,url"`
}

type createPaymentResponse struct {
	Success     bool                    `json:"success"`
	PaymentData payments.PaymentRequest `json:"paymentData"`
}

// verifyPaymentPayload mirrors the gateway callback. Gateways post many more
// fields than these, so unknown fields are tolerated.
type verifyPaymentPayload struct {
	Action      string          `json:"action"`
	MihPayID    string          `json:"mihpayid"`
	Status      string          `json:"status" validate:"required"`
	TxnID       string          `json:"txnid" validate:"required"`
	Amount      payments.Amount `json:"amount"`
	Hash        string          `json:"hash" validate:"required"`
	Email       string          `json:"email"`
	FirstName   string          `json:"firstname"`
	ProductInfo string          `json:"productinfo"`
}

type verifyPaymentResponse struct {
	Success       bool   `json:"success"`
	Verified      bool   `json:"verified"`
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// paymentsHandler is the single payments entry point; it dispatches on the
// "action" field of the JSON body.
//
//	POST /v1/payments
func (app *application) paymentsHandler(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var env actionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	switch env.Action {
	case actionCreatePayment:
		app.createPayment(w, r, body)
	case actionVerifyPayment:
		app.verifyPayment(w, r, body)
	default:
		app.invalidActionResponse(w, r, env.Action)
	}
}

func (app *application) createPayment(w http.ResponseWriter, r *http.Request, body []byte) {
	var payload createPaymentPayload
	if err := decodeJSON(body, &payload, true); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	// amount is checked first so a bad amount never reaches signing
	if err := payments.ValidateAmount(payload.Amount); err != nil {
		app.invalidAmountResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	req, err := app.payments.InitiatePayment(ctx, payments.ProviderPayU, payments.CheckoutRequest{
		OrderID:     payload.OrderID,
		Amount:      payload.Amount,
		ProductInfo: payload.ProductInfo,
		FirstName:   payload.FirstName,
		Email:       payload.Email,
		Phone:       payload.Phone,
		SuccessURL:  payload.SuccessURL,
		FailureURL:  payload.FailureURL,
	})
	switch {
	case err == nil:
	case errors.Is(err, payments.ErrInvalidAmount):
		app.invalidAmountResponse(w, r, err)
		return
	case errors.Is(err, payments.ErrInvalidOrderID), errors.Is(err, payments.ErrMissingField),
		errors.Is(err, payments.ErrInvalidField):
		app.badRequestResponse(w, r, err)
		return
	case errors.Is(err, payments.ErrCryptoUnavailable):
		app.cryptoUnavailableResponse(w, r, err)
		return
	default:
		app.internalServerError(w, r, fmt.Errorf("initiate payment: %w", err))
		return
	}

	err = app.store.WithTx(ctx, func(s *storage.PaymentsTx) error {
		p, err := s.Payments.Create(ctx, &paymentsrepo.Payment{
			OrderID:     payload.OrderID,
			Provider:    payments.ProviderPayU,
			TxnID:       req.TxnID,
			MerchantKey: req.Key,
			Amount:      req.Amount,
			ProductInfo: req.ProductInfo,
			FirstName:   req.FirstName,
			Email:       req.Email,
			Phone:       req.Phone,
			SuccessURL:  req.SuccessURL,
			FailureURL:  req.FailureURL,
			Hash:        req.Hash,
			Status:      paymentsrepo.StatusPending,
		})
		if err != nil {
			return err
		}
		return s.PayLogs.InsertPaymentLog(ctx, p.ID, paymentsrepo.LogRequest, map[string]any{
			"stage":  "initiate",
			"txnid":  req.TxnID,
			"amount": req.Amount,
			"action": req.Action,
		})
	})
	if err != nil {
		app.internalServerError(w, r, fmt.Errorf("persist payment request: %w", err))
		return
	}

	app.metrics.CreatedTotal.Inc()
	app.logger.Infow("payment request created", "order_id", payload.OrderID, "txnid", req.TxnID)

	if err := writeJSON(w, http.StatusOK, createPaymentResponse{Success: true, PaymentData: req}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) verifyPayment(w http.ResponseWriter, r *http.Request, body []byte) {
	var payload verifyPaymentPayload
	if err := decodeJSON(body, &payload, false); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := app.verifyCallback(ctx, sourceAPI,
		payments.Callback{
			GatewayTxnID: payload.MihPayID,
			Status:       payload.Status,
			TxnID:        payload.TxnID,
			Amount:       payload.Amount.String(),
			Hash:         payload.Hash,
		},
		payments.Original{
			Email:       payload.Email,
			FirstName:   payload.FirstName,
			ProductInfo: payload.ProductInfo,
		},
	)
	switch {
	case err == nil:
	case errors.Is(err, errCallbackInFlight):
		app.conflictResponse(w, r, err)
		return
	case errors.Is(err, payments.ErrCryptoUnavailable):
		app.cryptoUnavailableResponse(w, r, err)
		return
	default:
		app.internalServerError(w, r, fmt.Errorf("verify payment: %w", err))
		return
	}

	if err := writeJSON(w, http.StatusOK, res); err != nil {
		app.internalServerError(w, r, err)
	}
}

// verifyCallback checks one gateway callback against the stored request and
// records the outcome. A replayed callback gets the first answer back.
func (app *application) verifyCallback(ctx context.Context, source string, cb payments.Callback, echo payments.Original) (verifyPaymentResponse, error) {
	if app.replay == nil {
		return app.checkCallback(ctx, source, cb, echo)
	}

	key := "verify:" + cb.TxnID + ":" + strings.ToLower(cb.Hash)
	cached, err := app.replay.Claim(ctx, key)
	switch {
	case errors.Is(err, idempotency.ErrInFlight):
		return verifyPaymentResponse{}, errCallbackInFlight
	case err != nil:
		// the store still refuses to downgrade a paid payment, so carry on
		app.logger.Warnw("replay cache unavailable", "txnid", cb.TxnID, "error", err.Error())
		return app.checkCallback(ctx, source, cb, echo)
	case cached != nil:
		var res verifyPaymentResponse
		if err := json.Unmarshal(cached, &res); err == nil {
			app.metrics.VerifiedTotal.WithLabelValues(metrics.OutcomeReplayed).Inc()
			app.logger.Infow("replayed callback answered from cache", "txnid", cb.TxnID, "source", source)
			return res, nil
		}
		app.logger.Warnw("discarding unreadable cached callback result", "txnid", cb.TxnID)
	}

	res, err := app.checkCallback(ctx, source, cb, echo)
	if err != nil {
		if rerr := app.replay.Release(ctx, key); rerr != nil {
			app.logger.Warnw("failed to release replay claim", "txnid", cb.TxnID, "error", rerr.Error())
		}
		return res, err
	}

	if b, merr := json.Marshal(res); merr == nil {
		if cerr := app.replay.Complete(ctx, key, b); cerr != nil {
			app.logger.Warnw("failed to cache callback result", "txnid", cb.TxnID, "error", cerr.Error())
		}
	}
	return res, nil
}

func (app *application) checkCallback(ctx context.Context, source string, cb payments.Callback, echo payments.Original) (verifyPaymentResponse, error) {
	res := verifyPaymentResponse{TransactionID: cb.TxnID, Status: cb.Status}

	stored, err := app.store.Payments.GetByTxnID(ctx, cb.TxnID)
	if err != nil {
		return res, err
	}
	if stored == nil {
		app.metrics.VerifiedTotal.WithLabelValues(metrics.OutcomeUnknown).Inc()
		app.logger.Warnw("callback for unknown transaction", "txnid", cb.TxnID, "source", source)
		res.Message = msgUnknownTxn
		return res, nil
	}

	app.warnOnEchoMismatch(stored, echo)

	ver, err := app.payments.VerifyPayment(ctx, stored.Provider, cb, payments.Original{
		Email:       stored.Email,
		FirstName:   stored.FirstName,
		ProductInfo: stored.ProductInfo,
	})
	if err != nil {
		if lerr := app.store.PayLogs.InsertPaymentLog(ctx, stored.ID, paymentsrepo.LogError, map[string]any{
			"stage":  "verify",
			"source": source,
			"error":  err.Error(),
		}); lerr != nil {
			app.logger.Warnw("failed to log verification error", "txnid", cb.TxnID, "error", lerr.Error())
		}
		return res, err
	}

	res.Verified = ver.Verified
	res.Success = ver.Success

	logType := paymentsrepo.LogVerify
	if source == sourceRedirect {
		logType = paymentsrepo.LogRedirect
	}
	logPayload := map[string]any{
		"source":   source,
		"mihpayid": cb.GatewayTxnID,
		"status":   cb.Status,
		"amount":   cb.Amount,
		"verified": res.Verified,
		"success":  res.Success,
	}

	if !ver.Verified {
		// Unsigned reports are audited only. Anyone can post to the return
		// URLs, so they must not close the attempt or set gateway_ref.
		res.Message = msgUnverified
		logPayload["outcome"] = metrics.OutcomeUnverified
		if err := app.store.PayLogs.InsertPaymentLog(ctx, stored.ID, logType, logPayload); err != nil {
			return res, fmt.Errorf("log unverified callback: %w", err)
		}
		app.metrics.VerifiedTotal.WithLabelValues(metrics.OutcomeUnverified).Inc()
		app.logger.Warnw("payment flagged for manual review",
			"txnid", cb.TxnID, "source", source, "reason", res.Message,
			"claimed_status", cb.Status, "mihpayid", cb.GatewayTxnID)
		return res, nil
	}

	var status, outcome string
	switch {
	case ver.Success && !payments.SameAmount(cb.Amount, stored.Amount):
		// signed by the gateway, but not for the amount we asked for
		res.Success = false
		status, outcome = paymentsrepo.StatusSuspect, metrics.OutcomeUnverified
		res.Message = msgAmountMismatch
	case ver.Success:
		status, outcome = paymentsrepo.StatusPaid, metrics.OutcomePaid
		res.Message = msgVerified
	default:
		status, outcome = paymentsrepo.StatusFailed, metrics.OutcomeFailed
		res.Message = msgNotSuccessful
	}
	logPayload["success"] = res.Success
	logPayload["outcome"] = status

	var updated *paymentsrepo.Payment
	var paidNow bool
	err = app.store.WithTx(ctx, func(s *storage.PaymentsTx) error {
		var err error
		updated, paidNow, err = s.Payments.RecordOutcome(ctx, cb.TxnID, status, cb.GatewayTxnID)
		if err != nil {
			return err
		}
		return s.PayLogs.InsertPaymentLog(ctx, stored.ID, logType, logPayload)
	})
	if err != nil {
		return res, fmt.Errorf("record outcome: %w", err)
	}

	app.metrics.VerifiedTotal.WithLabelValues(outcome).Inc()
	if status == paymentsrepo.StatusSuspect {
		app.logger.Warnw("payment flagged for manual review",
			"txnid", cb.TxnID, "source", source, "reason", res.Message, "claimed_status", cb.Status)
	} else {
		app.logger.Infow("payment callback verified", "txnid", cb.TxnID, "source", source, "outcome", status)
	}

	// concurrent callbacks for the same payment see the same snapshot; only
	// the one that made the transition sends the receipt
	if paidNow && updated != nil {
		app.sendReceipt(updated)
	}

	return res, nil
}

// warnOnEchoMismatch logs callers that echo customer fields different from
// the stored request. The stored values are the ones that get verified.
func (app *application) warnOnEchoMismatch(stored *paymentsrepo.Payment, echo payments.Original) {
	var fields []string
	if echo.Email != "" && echo.Email != stored.Email {
		fields = append(fields, "email")
	}
	if echo.FirstName != "" && echo.FirstName != stored.FirstName {
		fields = append(fields, "firstname")
	}
	if echo.ProductInfo != "" && echo.ProductInfo != stored.ProductInfo {
		fields = append(fields, "productinfo")
	}
	if len(fields) > 0 {
		app.logger.Warnw("callback echo fields differ from stored request", "txnid", stored.TxnID, "fields", fields)
	}
}

package main

import (
	"fmt"
	"net/http"
	"time"
)

// Error codes surfaced to clients in the "code" field.
const (
	codeBadRequest        = "BadRequest"
	codeInvalidAction     = "InvalidAction"
	codeInvalidAmount     = "InvalidAmount"
	codeCryptoUnavailable = "CryptoUnavailable"
	codeUnauthorized      = "Unauthorized"
	codeForbidden         = "Forbidden"
	codeNotFound          = "NotFound"
	codeConflict          = "Conflict"
	codeRateLimited       = "RateLimited"
	codeUpstreamUnknown   = "UpstreamUnknown"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, codeUpstreamUnknown,
		"the server encountered a problem", "unexpected error while processing the request")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, codeBadRequest, err.Error(), "")
}

func (app *application) invalidActionResponse(w http.ResponseWriter, r *http.Request, action string) {
	app.logger.Warnw("invalid action", "method", r.Method, "path", r.URL.Path, "action", action)

	writeJSONError(w, http.StatusBadRequest, codeInvalidAction,
		"invalid action", fmt.Sprintf("action must be %q or %q", actionCreatePayment, actionVerifyPayment))
}

func (app *application) invalidAmountResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("invalid amount", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, codeInvalidAmount, "invalid amount", err.Error())
}

func (app *application) cryptoUnavailableResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("digest unavailable", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, codeCryptoUnavailable,
		"payment signing is unavailable", "")
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnauthorized, codeUnauthorized, "unauthorized", "")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)
	writeJSONError(w, http.StatusUnauthorized, codeUnauthorized, "unauthorized", "")
}

func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	app.logger.Warnw("forbidden", "method", r.Method, "path", r.URL.Path)

	writeJSONError(w, http.StatusForbidden, codeForbidden, "forbidden", "")
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("not found", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusNotFound, codeNotFound, "not found", "")
}

func (app *application) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("conflict", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusConflict, codeConflict, err.Error(), "")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path)

	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
	writeJSONError(w, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded", "")
}

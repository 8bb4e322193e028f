package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bazaar/internal/domain/paymentsrepo"
	"bazaar/internal/params"
)

var listableStatuses = map[string]bool{
	paymentsrepo.StatusPending: true,
	paymentsrepo.StatusPaid:    true,
	paymentsrepo.StatusFailed:  true,
	paymentsrepo.StatusSuspect: true,
}

// adminListPaymentsHandler returns payment attempts newest first. Optional
// filter: status=pending|paid|failed|suspect.
//
//	GET /v1/payments?status=&page=&limit=
func (app *application) adminListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	q := r.URL.Query()
	status := strings.ToLower(strings.TrimSpace(q.Get("status")))
	if status != "" && !listableStatuses[status] {
		app.badRequestResponse(w, r, fmt.Errorf("invalid status filter %q", status))
		return
	}

	pg := params.ParsePagination(q)

	list, total, err := app.store.Payments.List(ctx, status, pg.Limit, pg.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	pg.ComputeMeta(total)

	if list == nil {
		list = []*paymentsrepo.Payment{}
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]any{
		"payments":   list,
		"pagination": pg,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}

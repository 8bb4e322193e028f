package main

import (
	"net/http"
)

func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	storage := "memory"
	if app.store.Memory() == nil {
		storage = "postgres"
	}

	data := map[string]any{
		"status":       "ok",
		"env":          app.config.env,
		"version":      version,
		"storage":      storage,
		"replay_cache": app.replay != nil,
		"receipts":     app.mailer != nil,
	}

	if err := app.jsonResponse(w, http.StatusOK, data); err != nil {
		app.internalServerError(w, r, err)
	}
}

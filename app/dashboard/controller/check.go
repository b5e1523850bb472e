package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"

	"github.com/F4txhr/pla/pkg/db/models"
)

// HandleCheckTrigger resets the whole population to "testing" and schedules
// a background check cycle. It returns 202 as soon as the reset is durable;
// batches drain after the response is sent.
func (c *Controller) HandleCheckTrigger(w http.ResponseWriter, r *http.Request) {
	scheduled, err := c.App.Checker.Trigger(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":   "failed to start check cycle",
			"details": err.Error(),
		})
		return
	}
	if scheduled == 0 {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accepted": false,
			"message":  "no proxies to check",
		})
		return
	}
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"accepted":       true,
		"scheduledCount": scheduled,
	})
}

// HandleCheckBatch probes one explicit batch synchronously and persists the
// outcomes before responding.
func (c *Controller) HandleCheckBatch(w http.ResponseWriter, r *http.Request) {
	var batch []*models.Proxy
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad json"})
		return
	}
	if len(batch) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no proxies in payload"})
		return
	}

	processed, err := c.App.Checker.CheckBatch(r.Context(), batch)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":        true,
		"processedCount": processed,
	})
}

// HandleCheckReconcile flips records stuck at "testing" past the staleness
// threshold to "offline".
func (c *Controller) HandleCheckReconcile(w http.ResponseWriter, r *http.Request) {
	reconciled, err := c.App.Checker.ReconcileStale(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]int{"reconciled": reconciled})
}

// HandleCheckStatus reports the progress of recent check cycles, newest
// first.
func (c *Controller) HandleCheckStatus(w http.ResponseWriter, _ *http.Request) {
	_ = json.NewEncoder(w).Encode(c.App.Checker.Status())
}

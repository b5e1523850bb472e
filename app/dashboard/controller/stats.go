package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
)

// HandleStats returns population counts by status plus the timestamp of the
// last completed check trigger.
func (c *Controller) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.App.Store.ProxyStats(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(stats)
}

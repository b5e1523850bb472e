package controller

import (
	"net/http"
	"strconv"

	"github.com/go-jose/go-jose/v4/json"

	"github.com/F4txhr/pla/pkg/db"
	"github.com/F4txhr/pla/pkg/db/models"
)

// HandleProxiesList returns one page of proxy records.
// Query params: ?page=0&pageSize=1000&status=online
func (c *Controller) HandleProxiesList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 0 {
		page = 0
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize <= 0 || pageSize > db.PageSize {
		pageSize = db.PageSize
	}
	status := r.URL.Query().Get("status")

	proxies, err := c.App.Store.ListProxies(r.Context(), page, pageSize, status)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	if proxies == nil {
		proxies = make([]*models.Proxy, 0)
	}
	_ = json.NewEncoder(w).Encode(proxies)
}

// HandleProxiesImport bulk-imports proxy records. Addresses already present
// in the store (or repeated within the payload) are skipped.
func (c *Controller) HandleProxiesImport(w http.ResponseWriter, r *http.Request) {
	var in []*models.Proxy
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad json"})
		return
	}
	if len(in) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no proxies in payload"})
		return
	}

	imported, err := c.App.Store.ImportProxies(r.Context(), in)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]int{"imported": imported})
}

// HandleProxiesPatch bulk-updates status, latency and last_checked by id.
func (c *Controller) HandleProxiesPatch(w http.ResponseWriter, r *http.Request) {
	var in []*models.Proxy
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad json"})
		return
	}
	if len(in) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "no proxies in payload"})
		return
	}
	for _, p := range in {
		if p.ID == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "proxy id is required"})
			return
		}
	}

	if err := c.App.Store.WriteOutcomes(r.Context(), in); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]int{"updated": len(in)})
}

// HandleProxiesUnknown returns every record still awaiting its first check.
func (c *Controller) HandleProxiesUnknown(w http.ResponseWriter, r *http.Request) {
	proxies, err := c.App.Store.UnknownProxies(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	if proxies == nil {
		proxies = make([]*models.Proxy, 0)
	}
	_ = json.NewEncoder(w).Encode(proxies)
}

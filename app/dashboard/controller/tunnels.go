package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"

	"github.com/F4txhr/pla/pkg/db/models"
)

// HandleTunnelsList returns all tunnels
func (c *Controller) HandleTunnelsList(w http.ResponseWriter, r *http.Request) {
	ts, err := c.App.Store.ListTunnels(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	if ts == nil {
		ts = make([]*models.Tunnel, 0)
	}
	_ = json.NewEncoder(w).Encode(ts)
}

// HandleTunnelCreate creates a tunnel
func (c *Controller) HandleTunnelCreate(w http.ResponseWriter, r *http.Request) {
	var t models.Tunnel
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad json"})
		return
	}

	if err := c.App.Store.UpsertTunnel(r.Context(), &t); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(&t)
}

// HandleTunnelPatch updates an existing tunnel by id
func (c *Controller) HandleTunnelPatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var t models.Tunnel
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad json"})
		return
	}
	t.ID = id

	if err := c.App.Store.UpsertTunnel(r.Context(), &t); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(&t)
}

// HandleTunnelDelete deletes a tunnel by id
func (c *Controller) HandleTunnelDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := c.App.Store.DeleteTunnel(r.Context(), id); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

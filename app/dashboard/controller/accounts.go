package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"

	"github.com/F4txhr/pla/pkg/db/models"
)

// HandleAccountsList returns all accounts
func (c *Controller) HandleAccountsList(w http.ResponseWriter, r *http.Request) {
	as, err := c.App.Store.ListAccounts(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	if as == nil {
		as = make([]*models.Account, 0)
	}
	_ = json.NewEncoder(w).Encode(as)
}

// HandleAccountUpsert creates or updates an account
func (c *Controller) HandleAccountUpsert(w http.ResponseWriter, r *http.Request) {
	var a models.Account
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "bad json"})
		return
	}

	if err := c.App.Store.UpsertAccount(r.Context(), &a); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(&a)
}

// HandleAccountDelete deletes an account by id
func (c *Controller) HandleAccountDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := c.App.Store.DeleteAccount(r.Context(), id); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package controller

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/F4txhr/pla/app/dashboard/types"
	"github.com/F4txhr/pla/pkg/utils"
)

type Controller struct {
	App        *types.App
	AdminToken string
	AuthUser   string
	AuthHash   []byte
	JWTSecret  []byte
	CronSecret string
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	adminToken := utils.Env("ADMIN_TOKEN", "devtoken")
	adminUser := utils.Env("ADMIN_USER", "admin")
	adminPass := utils.Env("ADMIN_PASSWORD", "admin")
	jwtSecret := []byte(utils.Env("SESSION_SECRET", "change-me-please"))
	cronSecret := utils.Env("CRON_SECRET", "")

	phash, _ := utils.HashOrRead(adminPass)

	return &Controller{
		App:        app,
		AdminToken: adminToken,
		AuthUser:   adminUser,
		AuthHash:   phash,
		JWTSecret:  jwtSecret,
		CronSecret: cronSecret,
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodPatch+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	// Login/Logout
	r.HandleFunc("/api/auth/login", c.HandleAdminLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", c.HandleAdminLogout).Methods(http.MethodPost)

	// Proxies
	r.Handle("/api/proxies", c.RequireAuth(http.HandlerFunc(c.HandleProxiesList))).Methods(http.MethodGet)
	r.Handle("/api/proxies", c.RequireAuth(http.HandlerFunc(c.HandleProxiesImport))).Methods(http.MethodPost)
	r.Handle("/api/proxies", c.RequireAuth(http.HandlerFunc(c.HandleProxiesPatch))).Methods(http.MethodPatch)
	r.Handle("/api/proxies/unknown", c.RequireAuth(http.HandlerFunc(c.HandleProxiesUnknown))).Methods(http.MethodGet)

	// Tunnels
	r.Handle("/api/tunnels", c.RequireAuth(http.HandlerFunc(c.HandleTunnelsList))).Methods(http.MethodGet)
	r.Handle("/api/tunnels", c.RequireAuth(http.HandlerFunc(c.HandleTunnelCreate))).Methods(http.MethodPost)
	r.Handle("/api/tunnels/{id}", c.RequireAuth(http.HandlerFunc(c.HandleTunnelPatch))).Methods(http.MethodPatch)
	r.Handle("/api/tunnels/{id}", c.RequireAuth(http.HandlerFunc(c.HandleTunnelDelete))).Methods(http.MethodDelete)

	// Accounts
	r.Handle("/api/accounts", c.RequireAuth(http.HandlerFunc(c.HandleAccountsList))).Methods(http.MethodGet)
	r.Handle("/api/accounts", c.RequireAuth(http.HandlerFunc(c.HandleAccountUpsert))).Methods(http.MethodPost)
	r.Handle("/api/accounts/{id}", c.RequireAuth(http.HandlerFunc(c.HandleAccountDelete))).Methods(http.MethodDelete)

	// Stats
	r.Handle("/api/stats", c.RequireAuth(http.HandlerFunc(c.HandleStats))).Methods(http.MethodGet)

	// Check pipeline
	r.Handle("/api/check/trigger", c.RequireCronSecret(http.HandlerFunc(c.HandleCheckTrigger))).Methods(http.MethodPost)
	r.Handle("/api/check/reconcile", c.RequireCronSecret(http.HandlerFunc(c.HandleCheckReconcile))).Methods(http.MethodPost)
	r.Handle("/api/check/batch", c.RequireAuth(http.HandlerFunc(c.HandleCheckBatch))).Methods(http.MethodPost)
	r.Handle("/api/check/status", c.RequireAuth(http.HandlerFunc(c.HandleCheckStatus))).Methods(http.MethodGet)

	// WebSocket endpoint for real-time check events
	r.HandleFunc("/api/ws", c.HandleWebSocket).Methods(http.MethodGet)

	return r, nil
}

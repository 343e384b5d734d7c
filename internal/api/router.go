package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates and returns the main HTTP router.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{Deps: deps}

	r.Get("/api/info", h.getInfo)

	// Synchronized snapshots
	r.Get("/api/dashboard", h.getSnapshot(h.Dashboard, "dashboard"))
	r.Post("/api/dashboard/refresh", h.refresh(h.Dashboard, "dashboard"))
	r.Get("/api/operations", h.getSnapshot(h.Operations, "operations"))
	r.Post("/api/operations/refresh", h.refresh(h.Operations, "operations"))
	r.Get("/api/risk", h.getSnapshot(h.Risk, "risk"))
	r.Post("/api/risk/refresh", h.refresh(h.Risk, "risk"))

	// Settings
	r.Get("/api/settings", h.getSettings)
	r.Get("/api/settings/{section}/{key}", h.getSetting)
	r.Patch("/api/settings/{section}/{key}", h.setSetting)
	r.Post("/api/settings/reset", h.resetSettings)
	r.Get("/api/presentation", h.getPresentation)

	// Paged lists
	r.Get("/api/clients", h.getList(h.Clients, "clients"))
	r.Post("/api/clients/search", h.searchList(h.Clients, "clients"))
	r.Post("/api/clients/page", h.pageList(h.Clients, "clients"))
	r.Get("/api/transactions", h.getList(h.Transactions, "transactions"))
	r.Post("/api/transactions/page", h.pageList(h.Transactions, "transactions"))

	// ML
	r.Post("/api/predict/{model}", h.predict)

	// SSE
	r.Get("/api/subscribe", h.sseEvents)

	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

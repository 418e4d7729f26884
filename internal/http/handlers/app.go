// Package handlers implements the HTTP surface over the orchestrator and
// ledger services.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/infra"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/ledger"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/middleware"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/orchestrator"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/storage"
)

// App carries the handler dependencies.
type App struct {
	Cfg          *infra.Config
	Log          infra.Logger
	Orchestrator *orchestrator.Service
	Ledger       ledger.Service
	Store        *storage.FileStore
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) isAdmin(userID string) bool {
	for _, id := range a.Cfg.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
)

type stuckJobResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Type        string    `json:"type"`
	Provider    string    `json:"provider"`
	CostCredits int64     `json:"cost_credits"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AdminStuckJobs lists jobs stranded in processing past the staleness
// threshold. It reads the same query the sweeper settles from, so a
// non-empty response that persists across sweeps signals a broken sweeper.
// The listing spans all users, so it is restricted to the ADMIN_USER_IDS
// allowlist.
func (a *App) AdminStuckJobs(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if !a.isAdmin(userID) {
		a.error(w, http.StatusForbidden, "forbidden", "admin access required")
		return
	}
	threshold := a.Cfg.StuckThreshold
	if raw := r.URL.Query().Get("older_than_minutes"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			threshold = time.Duration(parsed) * time.Minute
		}
	}
	jobs, err := a.Orchestrator.ListStuck(r.Context(), threshold, 200)
	if err != nil {
		a.Log.Error().Err(err).Msg("list stuck jobs")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list stuck jobs")
		return
	}
	items := make([]stuckJobResponse, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, toStuckJobResponse(job))
	}
	a.json(w, http.StatusOK, map[string]any{"stuck_jobs": items, "count": len(items)})
}

func toStuckJobResponse(job domain.Job) stuckJobResponse {
	return stuckJobResponse{
		ID:          job.ID,
		UserID:      job.UserID,
		Type:        string(job.Type),
		Provider:    job.Provider,
		CostCredits: job.CostCredits,
		UpdatedAt:   job.UpdatedAt,
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/middleware"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/orchestrator"
	"github.com/arnav-rishi/creativia-nexus-sub000/internal/storage"
	"github.com/arnav-rishi/creativia-nexus-sub000/pkg/archive"
)

type createJobRequest struct {
	Type     string        `json:"job_type"`
	Prompt   string        `json:"prompt"`
	InputRef string        `json:"input_ref,omitempty"`
	Params   domain.Params `json:"params"`
}

type createJobResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Balance *int64 `json:"balance,omitempty"`
}

type jobResponse struct {
	ID           string        `json:"id"`
	Type         string        `json:"job_type"`
	Status       string        `json:"status"`
	Prompt       string        `json:"prompt"`
	Provider     string        `json:"provider"`
	CostCredits  int64         `json:"cost_credits"`
	Params       domain.Params `json:"params"`
	ResultURL    string        `json:"result_url,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// CreateJob submits a generation job. The charge and the enqueue are atomic;
// a rejected request costs nothing.
func (a *App) CreateJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	job, err := a.Orchestrator.Submit(r.Context(), orchestrator.SubmitInput{
		UserID:   userID,
		Type:     domain.JobType(req.Type),
		Prompt:   req.Prompt,
		InputRef: req.InputRef,
		Params:   req.Params,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientCredits):
			a.error(w, http.StatusPaymentRequired, "insufficient_credits", "not enough credits for this job")
		case orchestrator.IsValidationError(err):
			a.error(w, http.StatusUnprocessableEntity, "invalid_request", err.Error())
		default:
			a.Log.Error().Err(err).Str("user_id", userID).Msg("submit job")
			a.error(w, http.StatusInternalServerError, "internal", "failed to submit job")
		}
		return
	}

	if country := middleware.CountryFromContext(r.Context()); country != "" {
		a.Log.Info().Str("job_id", job.ID).Str("country", country).Msg("job submitted from")
	}

	resp := createJobResponse{
		JobID:  job.ID,
		Status: string(job.Status),
	}
	// Best effort: the job is committed either way. A zero here would read
	// as an empty account, so the field is omitted when the read fails.
	if account, err := a.Ledger.Balance(r.Context(), userID); err == nil {
		resp.Balance = &account.Balance
	} else {
		a.Log.Error().Err(err).Str("user_id", userID).Msg("load balance after submit")
	}
	a.json(w, http.StatusCreated, resp)
}

// JobStatus returns the job owned by the caller, with a signed result URL
// once completed.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Orchestrator.Get(r.Context(), userID, jobID)
	if err != nil {
		// Foreign jobs read as missing so IDs cannot be probed.
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Log.Error().Err(err).Str("job_id", jobID).Msg("load job")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, a.jobToResponse(job))
}

// JobBundle downloads the completed job's media plus a manifest as a zip.
func (a *App) JobBundle(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	job, gen, err := a.Orchestrator.Generation(r.Context(), userID, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrForbidden) {
			a.error(w, http.StatusNotFound, "not_found", "no bundle for this job")
			return
		}
		a.Log.Error().Err(err).Str("job_id", jobID).Msg("load generation")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load bundle")
		return
	}

	media, err := a.Store.Read(storage.Ref(gen.MediaRef))
	if err != nil {
		a.Log.Error().Err(err).Str("job_id", jobID).Str("media_ref", gen.MediaRef).Msg("read media")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read media")
		return
	}
	manifest, _ := json.MarshalIndent(map[string]any{
		"job_id":       job.ID,
		"type":         job.Type,
		"prompt":       job.Prompt,
		"provider":     gen.Provider,
		"content_type": gen.ContentType,
		"params":       gen.Params,
		"created_at":   gen.CreatedAt,
	}, "", "  ")

	data, err := archive.Build([]archive.Entry{
		{Filename: path.Base(gen.MediaRef), Data: media},
		{Filename: "manifest.json", Data: manifest},
	})
	if err != nil {
		a.Log.Error().Err(err).Str("job_id", jobID).Msg("build bundle")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build bundle")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.ID+".zip"))
	_, _ = w.Write(data)
}

func (a *App) jobToResponse(job *domain.Job) jobResponse {
	resp := jobResponse{
		ID:          job.ID,
		Type:        string(job.Type),
		Status:      string(job.Status),
		Prompt:      job.Prompt,
		Provider:    job.Provider,
		CostCredits: job.CostCredits,
		Params:      job.Params,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
	}
	if job.Status == domain.JobStatusFailed {
		resp.ErrorMessage = job.ErrorMessage
	}
	if job.Status == domain.JobStatusCompleted && job.ResultRef != "" {
		if url, err := a.Store.Sign(storage.Ref(job.ResultRef), a.Cfg.SignedURLTTL); err == nil {
			resp.ResultURL = url
		}
	}
	return resp
}

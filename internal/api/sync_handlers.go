package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/creatorpulse/creatorpulse/internal/auth"
	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/sync"
)

// SyncHandler exposes the sync engine: single-account syncs, project-wide
// batch syncs with a session, job inspection and the scheduler trigger.
type SyncHandler struct {
	accounts        models.AccountRepository
	jobs            models.JobRepository
	sessions        models.SessionRepository
	queue           *sync.QueueManager
	aggregator      *sync.SessionAggregator
	schedulerSecret string
	logger          *slog.Logger
}

func NewSyncHandler(
	accounts models.AccountRepository,
	jobs models.JobRepository,
	sessions models.SessionRepository,
	queue *sync.QueueManager,
	aggregator *sync.SessionAggregator,
	schedulerSecret string,
	logger *slog.Logger,
) *SyncHandler {
	return &SyncHandler{
		accounts:        accounts,
		jobs:            jobs,
		sessions:        sessions,
		queue:           queue,
		aggregator:      aggregator,
		schedulerSecret: schedulerSecret,
		logger:          logger,
	}
}

type syncRequest struct {
	Strategy string `json:"strategy"`
}

// SyncAccount enqueues a manual sync for one account
// POST /api/accounts/:id/sync
// Body: {"strategy": "progressive"}
func (h *SyncHandler) SyncAccount(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	id = strings.TrimSuffix(id, "/sync")

	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	strategy, err := ValidateStrategy(req.Strategy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get tracked account", "error", err)
		http.Error(w, "Failed to get account", http.StatusInternalServerError)
		return
	}
	if account == nil {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}

	job, err := h.queue.Enqueue(r.Context(), account.ID, account.ProjectID, "", strategy, models.TriggerManual)
	if err != nil {
		h.logger.Error("failed to enqueue sync job", "account_id", id, "error", err)
		http.Error(w, "Failed to enqueue sync", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(job)
}

// SyncProject enqueues a sync for every enabled account in a project, tied
// together by one session so the batch produces a single summary
// POST /api/projects/:id/sync
// Body: {"strategy": "progressive"}
func (h *SyncHandler) SyncProject(w http.ResponseWriter, r *http.Request) {
	projectID := strings.TrimPrefix(r.URL.Path, "/api/projects/")
	projectID = strings.TrimSuffix(projectID, "/sync")

	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	strategy, err := ValidateStrategy(req.Strategy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	accounts, err := h.accounts.ListByProject(r.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to list project accounts", "project_id", projectID, "error", err)
		http.Error(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}

	enabled := accounts[:0]
	for _, account := range accounts {
		if account.Enabled {
			enabled = append(enabled, account)
		}
	}
	if len(enabled) == 0 {
		http.Error(w, "Project has no enabled accounts", http.StatusUnprocessableEntity)
		return
	}

	session, err := h.aggregator.StartSession(r.Context(), projectID, len(enabled))
	if err != nil {
		h.logger.Error("failed to start sync session", "project_id", projectID, "error", err)
		http.Error(w, "Failed to start session", http.StatusInternalServerError)
		return
	}

	jobs := make([]*models.SyncJob, 0, len(enabled))
	for _, account := range enabled {
		job, err := h.queue.Enqueue(r.Context(), account.ID, projectID, session.ID, strategy, models.TriggerManual)
		if err != nil {
			h.logger.Error("failed to enqueue sync job",
				"account_id", account.ID,
				"session_id", session.ID,
				"error", err,
			)
			// Free the slot so the session can still close.
			if rerr := h.aggregator.ReportCompletion(r.Context(), session.ID, account.ID, 0); rerr != nil {
				h.logger.Error("failed to release session slot", "session_id", session.ID, "error", rerr)
			}
			continue
		}
		jobs = append(jobs, job)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session_id": session.ID,
		"expected":   session.Expected,
		"jobs":       jobs,
	})
}

// GetJob returns one sync job's state
// GET /api/jobs/:id
func (h *SyncHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get sync job", "job_id", id, "error", err)
		http.Error(w, "Failed to get job", http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// GetSession returns a sync session's progress
// GET /api/sessions/:id
func (h *SyncHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")

	session, err := h.sessions.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get sync session", "session_id", id, "error", err)
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}
	if session == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

// ScheduledSweep lets an external cron trigger one queue sweep immediately.
// Authenticated with the shared scheduler secret rather than a JWT.
// POST /api/internal/scheduled-sync
func (h *SyncHandler) ScheduledSweep(w http.ResponseWriter, r *http.Request) {
	if !auth.CheckSchedulerSecret(r.Header.Get("X-Scheduler-Secret"), h.schedulerSecret) {
		h.logger.Warn("scheduled sweep rejected", "ip", r.RemoteAddr)
		http.Error(w, "Invalid scheduler secret", http.StatusUnauthorized)
		return
	}

	h.queue.Sweep(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
	})
}

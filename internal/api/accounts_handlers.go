package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

type AccountsHandler struct {
	accounts models.AccountRepository
	content  models.ContentRepository
	logger   *slog.Logger
}

func NewAccountsHandler(accounts models.AccountRepository, content models.ContentRepository, logger *slog.Logger) *AccountsHandler {
	return &AccountsHandler{
		accounts: accounts,
		content:  content,
		logger:   logger,
	}
}

// ListAccounts returns all tracked accounts for a project
// GET /api/accounts?project_id=...
func (h *AccountsHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		http.Error(w, "project_id query parameter is required", http.StatusBadRequest)
		return
	}

	accounts, err := h.accounts.ListByProject(r.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to list tracked accounts", "project_id", projectID, "error", err)
		http.Error(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// AddAccount adds a new account to track
// POST /api/accounts
// Body: {"organization_id": "...", "project_id": "...", "platform": "tiktok", "username": "@creator", "creator_type": "automatic"}
func (h *AccountsHandler) AddAccount(w http.ResponseWriter, r *http.Request) {
	var account models.TrackedAccount
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Set defaults
	if account.CreatorType == "" {
		account.CreatorType = models.CreatorTypeAutomatic
	}
	if account.FetchIntervalMinutes == 0 {
		account.FetchIntervalMinutes = 360
	}

	account.Username = models.NormalizeUsername(account.Username)

	if err := ValidateAccount(&account); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	existing, err := h.accounts.GetByPlatformAndUsername(r.Context(), account.ProjectID, account.Platform, account.Username)
	if err != nil {
		h.logger.Error("failed to check for existing account", "error", err)
		http.Error(w, "Failed to store account", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "Account is already tracked in this project", http.StatusConflict)
		return
	}

	account.SyncStatus = models.SyncStatusPending
	account.Enabled = true

	if err := h.accounts.Store(r.Context(), &account); err != nil {
		h.logger.Error("failed to store tracked account", "error", err)
		http.Error(w, "Failed to store account", http.StatusInternalServerError)
		return
	}

	h.logger.Info("added tracked account",
		"platform", account.Platform,
		"username", account.Username,
		"project_id", account.ProjectID,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(account)
}

// GetAccount returns a specific tracked account
// GET /api/accounts/:id
func (h *AccountsHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/accounts/")

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

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(account)
}

// UpdateAccount updates an existing account
// PUT /api/accounts/:id
func (h *AccountsHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/accounts/")

	var updates struct {
		DisplayName          *string             `json:"display_name"`
		CreatorType          *models.CreatorType `json:"creator_type"`
		MaxVideos            *int                `json:"max_videos"`
		FetchIntervalMinutes *int                `json:"fetch_interval_minutes"`
		Enabled              *bool               `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	existing, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get tracked account", "error", err)
		http.Error(w, "Failed to get account", http.StatusInternalServerError)
		return
	}

	if existing == nil {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}

	if updates.DisplayName != nil {
		existing.DisplayName = *updates.DisplayName
	}
	if updates.CreatorType != nil {
		existing.CreatorType = *updates.CreatorType
	}
	if updates.MaxVideos != nil {
		existing.MaxVideos = *updates.MaxVideos
	}
	if updates.FetchIntervalMinutes != nil {
		existing.FetchIntervalMinutes = *updates.FetchIntervalMinutes
	}
	if updates.Enabled != nil {
		existing.Enabled = *updates.Enabled
	}

	if err := ValidateAccount(existing); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.accounts.Store(r.Context(), existing); err != nil {
		h.logger.Error("failed to update tracked account", "error", err)
		http.Error(w, "Failed to update account", http.StatusInternalServerError)
		return
	}

	h.logger.Info("updated tracked account", "id", id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(existing)
}

// DeleteAccount removes an account from tracking
// DELETE /api/accounts/:id
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/accounts/")

	if err := h.accounts.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete tracked account", "error", err)
		http.Error(w, "Failed to delete account", http.StatusInternalServerError)
		return
	}

	h.logger.Info("deleted tracked account", "id", id)

	w.WriteHeader(http.StatusNoContent)
}

// ListContent returns the content items tracked for an account
// GET /api/accounts/:id/content
func (h *AccountsHandler) ListContent(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	id = strings.TrimSuffix(id, "/content")

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

	items, err := h.content.ListByAccount(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list content items", "account_id", id, "error", err)
		http.Error(w, "Failed to list content", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// ListSnapshots returns the metric history for a content item, newest first
// GET /api/content/:id/snapshots?limit=50
func (h *AccountsHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/content/")
	id = strings.TrimSuffix(id, "/snapshots")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			http.Error(w, "limit must be between 1 and 1000", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	snapshots, err := h.content.ListSnapshots(r.Context(), id, limit)
	if err != nil {
		h.logger.Error("failed to list snapshots", "content_item_id", id, "error", err)
		http.Error(w, "Failed to list snapshots", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

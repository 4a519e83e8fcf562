package api

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/creatorpulse/creatorpulse/internal/auth"
	"github.com/creatorpulse/creatorpulse/internal/models"
	"github.com/creatorpulse/creatorpulse/internal/sync"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	mux *http.ServeMux,
	accountRepo models.AccountRepository,
	contentRepo models.ContentRepository,
	jobRepo models.JobRepository,
	sessionRepo models.SessionRepository,
	queue *sync.QueueManager,
	aggregator *sync.SessionAggregator,
	authConfig auth.Config,
	logger *slog.Logger,
) {
	accountsHandler := NewAccountsHandler(accountRepo, contentRepo, logger)
	syncHandler := NewSyncHandler(accountRepo, jobRepo, sessionRepo, queue, aggregator, authConfig.SchedulerSecret, logger)
	authHandler := NewAuthHandler(authConfig, logger)

	// Auth middleware
	authMiddleware := auth.AuthMiddleware(authConfig)

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(authHandler.ValidateToken)).ServeHTTP(w, r)
	})

	// Tracked account routes
	mux.HandleFunc("/api/accounts", func(w http.ResponseWriter, r *http.Request) {
		// Handle CORS preflight
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusOK)
			return
		}

		// Require authentication for all methods
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				accountsHandler.ListAccounts(w, r)
			case http.MethodPost:
				accountsHandler.AddAccount(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/accounts/" {
			http.NotFound(w, r)
			return
		}

		// Handle CORS preflight for subroutes
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusOK)
			return
		}

		// Require authentication for all subroutes
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Handle /api/accounts/:id/sync
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/sync") {
				syncHandler.SyncAccount(w, r)
				return
			}

			// Handle /api/accounts/:id/content
			if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/content") {
				accountsHandler.ListContent(w, r)
				return
			}

			// Handle /api/accounts/:id
			switch r.Method {
			case http.MethodGet:
				accountsHandler.GetAccount(w, r)
			case http.MethodPut:
				accountsHandler.UpdateAccount(w, r)
			case http.MethodDelete:
				accountsHandler.DeleteAccount(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
		})).ServeHTTP(w, r)
	})

	// Project batch sync route
	mux.HandleFunc("/api/projects/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusOK)
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/sync") {
				syncHandler.SyncProject(w, r)
				return
			}
			http.Error(w, "Not found", http.StatusNotFound)
		})).ServeHTTP(w, r)
	})

	// Content snapshot history route
	mux.HandleFunc("/api/content/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusOK)
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/snapshots") {
				accountsHandler.ListSnapshots(w, r)
				return
			}
			http.Error(w, "Not found", http.StatusNotFound)
		})).ServeHTTP(w, r)
	})

	// Job inspection route
	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusOK)
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				syncHandler.GetJob(w, r)
				return
			}
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		})).ServeHTTP(w, r)
	})

	// Session progress route
	mux.HandleFunc("/api/sessions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusOK)
			return
		}
		authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				syncHandler.GetSession(w, r)
				return
			}
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		})).ServeHTTP(w, r)
	})

	// Cron trigger route (shared secret, no JWT)
	mux.HandleFunc("/api/internal/scheduled-sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		syncHandler.ScheduledSweep(w, r)
	})

	// CORS preflight
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	})
}

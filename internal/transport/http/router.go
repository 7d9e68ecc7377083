// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/adiadia/featuredesk/internal/auth"
	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/adiadia/featuredesk/internal/metrics"
	"github.com/adiadia/featuredesk/internal/transport/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultStreamPollInterval = 500 * time.Millisecond

type createAPIKeyRequest struct {
	Name              string `json:"name"`
	MaxRequestsPerMin int    `json:"max_requests_per_min"`
}

type createProjectRequest struct {
	Name          string `json:"name"`
	WebhookURL    string `json:"webhook_url"`
	WebhookSecret string `json:"webhook_secret"`
}

type createFeatureRequest struct {
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Priority    int      `json:"priority"`
	Steps       []string `json:"steps"`
}

type Deps struct {
	Projects           ProjectStore
	Features           FeatureStore
	Events             EventLister
	APIKeyAdmin        APIKeyManager
	APIKeyResolver     APIKeyResolver
	HealthChecker      HealthChecker
	Logger             *slog.Logger
	AdminToken         string
	StreamPollInterval time.Duration
	Version            string
	Commit             string
	BuildDate          string
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")
	pollInterval := deps.StreamPollInterval
	if pollInterval <= 0 {
		pollInterval = defaultStreamPollInterval
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.Check(r.Context()); err != nil {
				logger.Warn("health check failed", "error", err)
				writeError(w, http.StatusServiceUnavailable, "schema not ready")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- API KEY LIFECYCLE (ADMIN) ----------------

	if deps.APIKeyAdmin != nil {
		r.Route("/api-keys", func(admin chi.Router) {
			admin.Use(middleware.AdminTokenAuth(deps.AdminToken, logger))

			admin.Post("/", func(w http.ResponseWriter, r *http.Request) {
				var reqBody createAPIKeyRequest
				if err := decodeJSON(r, &reqBody); err != nil {
					writeError(w, http.StatusBadRequest, "invalid request body")
					return
				}

				created, err := deps.APIKeyAdmin.CreateAPIKey(r.Context(), domain.CreateAPIKeyParams{
					Name:              reqBody.Name,
					MaxRequestsPerMin: reqBody.MaxRequestsPerMin,
				})
				if err != nil {
					if errors.Is(err, domain.ErrInvalidAPIKeyName) {
						writeError(w, http.StatusBadRequest, err.Error())
						return
					}
					logger.Error("create api key failed", "error", err)
					writeError(w, http.StatusInternalServerError, "failed to create api key")
					return
				}

				writeJSON(w, http.StatusCreated, map[string]string{
					"api_key_id": created.ID.String(),
					"token":      created.Token,
				})
			})

			admin.Get("/", func(w http.ResponseWriter, r *http.Request) {
				keys, err := deps.APIKeyAdmin.ListAPIKeys(r.Context())
				if err != nil {
					logger.Error("list api keys failed", "error", err)
					writeError(w, http.StatusInternalServerError, "failed to list api keys")
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{
					"api_keys": keys,
				})
			})

			admin.Delete("/{id}", func(w http.ResponseWriter, r *http.Request) {
				id, err := uuid.Parse(chi.URLParam(r, "id"))
				if err != nil {
					writeError(w, http.StatusBadRequest, "invalid api key ID")
					return
				}

				if err := deps.APIKeyAdmin.RevokeAPIKey(r.Context(), id); err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						writeError(w, http.StatusNotFound, "api key not found")
						return
					}
					logger.Error("delete api key failed", "api_key_id", id, "error", err)
					writeError(w, http.StatusInternalServerError, "failed to delete api key")
					return
				}

				w.WriteHeader(http.StatusNoContent)
			})
		})
	}

	// ---------------- PROJECTS AND FEATURES (API KEY AUTH) ----------------

	r.Group(func(r chi.Router) {
		if deps.APIKeyResolver != nil {
			r.Use(middleware.APITokenAuth(deps.APIKeyResolver, logger))
		}

		h := &featureHandlers{
			deps:         deps,
			logger:       logger,
			pollInterval: pollInterval,
		}

		r.Post("/projects", h.createProject)
		r.Get("/projects", h.listProjects)

		r.Route("/projects/{projectID}/features", func(r chi.Router) {
			r.Get("/", h.listFeatures)
			r.Post("/", h.createFeature)
			r.Get("/{featureID}", h.getFeature)
			r.Patch("/{featureID}", h.updateFeature)
			r.Get("/{featureID}/events", h.listEvents)
			r.Get("/{featureID}/events/stream", h.streamEvents)
		})
	})

	return r
}

// writeStoreError maps repository errors onto HTTP responses. Validation and
// not-found errors carry their message through so API clients can show it.
func writeStoreError(w http.ResponseWriter, logger *slog.Logger, err error, op string, attrs ...any) {
	switch {
	case errors.Is(err, domain.ErrInvalidFeatureUpdate),
		errors.Is(err, domain.ErrInvalidProjectName),
		errors.Is(err, domain.ErrInvalidWebhookURL):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrFeatureNotFound),
		errors.Is(err, domain.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pgx.ErrNoRows):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrMissingAPIKeyID):
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, "missing or invalid API token")
	default:
		logger.Error(op+" failed", append(attrs, "error", err)...)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var errEmptyBody = errors.New("request body is required")

// decodeJSON decodes exactly one JSON object into dst and rejects unknown
// fields.
func decodeJSON(r *http.Request, dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return errEmptyBody
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}
	return nil
}

func valueOrDefault(value, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}

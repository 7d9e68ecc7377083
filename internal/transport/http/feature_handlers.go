// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/adiadia/featuredesk/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type featureHandlers struct {
	deps         Deps
	logger       *slog.Logger
	pollInterval time.Duration
}

func (h *featureHandlers) createProject(w http.ResponseWriter, r *http.Request) {
	if h.deps.Projects == nil {
		writeError(w, http.StatusNotImplemented, "projects are not configured")
		return
	}

	var reqBody createProjectRequest
	if err := decodeJSON(r, &reqBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project, err := h.deps.Projects.CreateProject(r.Context(), domain.CreateProjectParams{
		Name:          reqBody.Name,
		WebhookURL:    reqBody.WebhookURL,
		WebhookSecret: reqBody.WebhookSecret,
	})
	if err != nil {
		writeStoreError(w, h.logger, err, "create project")
		return
	}

	h.logger.Info("project created via API", "project_id", project.ID)
	writeJSON(w, http.StatusCreated, project)
}

func (h *featureHandlers) listProjects(w http.ResponseWriter, r *http.Request) {
	if h.deps.Projects == nil {
		writeError(w, http.StatusNotImplemented, "projects are not configured")
		return
	}

	projects, err := h.deps.Projects.ListProjects(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, err, "list projects")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"projects": projects,
	})
}

func (h *featureHandlers) listFeatures(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseIDParam(w, r, "projectID", "invalid project ID")
	if !ok {
		return
	}

	features, err := h.deps.Features.ListFeatures(r.Context(), projectID)
	if err != nil {
		writeStoreError(w, h.logger, err, "list features", "project_id", projectID)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		ProjectID string           `json:"project_id"`
		Features  []domain.Feature `json:"features"`
	}{
		ProjectID: projectID.String(),
		Features:  features,
	})
}

func (h *featureHandlers) createFeature(w http.ResponseWriter, r *http.Request) {
	projectID, ok := parseIDParam(w, r, "projectID", "invalid project ID")
	if !ok {
		return
	}

	var reqBody createFeatureRequest
	if err := decodeJSON(r, &reqBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	feature, err := h.deps.Features.CreateFeature(r.Context(), domain.CreateFeatureParams{
		ProjectID:   projectID,
		Category:    reqBody.Category,
		Name:        reqBody.Name,
		Description: reqBody.Description,
		Priority:    reqBody.Priority,
		Steps:       reqBody.Steps,
	})
	if err != nil {
		writeStoreError(w, h.logger, err, "create feature", "project_id", projectID)
		return
	}

	h.logger.Info("feature created via API", "feature_id", feature.ID, "project_id", projectID)
	writeJSON(w, http.StatusCreated, feature)
}

func (h *featureHandlers) getFeature(w http.ResponseWriter, r *http.Request) {
	projectID, featureID, ok := parseFeatureParams(w, r)
	if !ok {
		return
	}

	feature, err := h.deps.Features.GetFeature(r.Context(), projectID, featureID)
	if err != nil {
		writeStoreError(w, h.logger, err, "get feature", "feature_id", featureID)
		return
	}

	writeJSON(w, http.StatusOK, feature)
}

// updateFeature applies a full FeatureUpdate. A null priority reaches the
// store as nil and is rejected there with a message naming the field.
func (h *featureHandlers) updateFeature(w http.ResponseWriter, r *http.Request) {
	projectID, featureID, ok := parseFeatureParams(w, r)
	if !ok {
		return
	}

	var update domain.FeatureUpdate
	if err := decodeJSON(r, &update); err != nil {
		metrics.IncFeatureUpdate(metrics.UpdateInvalid)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	feature, err := h.deps.Features.UpdateFeature(r.Context(), projectID, featureID, update)
	if err != nil {
		metrics.IncFeatureUpdate(updateResult(err))
		writeStoreError(w, h.logger, err, "update feature", "feature_id", featureID)
		return
	}

	metrics.IncFeatureUpdate(metrics.UpdateApplied)
	h.logger.Info("feature updated via API",
		"feature_id", featureID,
		"project_id", projectID,
		"steps", len(feature.Steps),
	)
	writeJSON(w, http.StatusOK, feature)
}

func (h *featureHandlers) listEvents(w http.ResponseWriter, r *http.Request) {
	projectID, featureID, ok := parseFeatureParams(w, r)
	if !ok {
		return
	}
	if h.deps.Events == nil {
		writeError(w, http.StatusNotImplemented, "events are not configured")
		return
	}

	afterSeq, err := parseAfterSeq(r.URL.Query().Get("after_seq"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid after_seq")
		return
	}

	events, err := h.deps.Events.ListFeatureEvents(r.Context(), projectID, featureID, afterSeq)
	if err != nil {
		writeStoreError(w, h.logger, err, "list events", "feature_id", featureID)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		FeatureID string               `json:"feature_id"`
		Events    []domain.EventRecord `json:"events"`
	}{
		FeatureID: featureID.String(),
		Events:    events,
	})
}

// streamEvents pushes the feature's events as server-sent events, polling the
// log until the client disconnects.
func (h *featureHandlers) streamEvents(w http.ResponseWriter, r *http.Request) {
	projectID, featureID, ok := parseFeatureParams(w, r)
	if !ok {
		return
	}
	if h.deps.Events == nil {
		writeError(w, http.StatusNotImplemented, "events are not configured")
		return
	}

	cursor, err := parseAfterSeq(r.URL.Query().Get("after_seq"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid after_seq")
		return
	}

	// The first page doubles as the ownership check so foreign features 404
	// before the stream opens.
	initial, err := h.deps.Events.ListFeatureEvents(r.Context(), projectID, featureID, cursor)
	if err != nil {
		writeStoreError(w, h.logger, err, "stream events", "feature_id", featureID)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	writeEvents := func(events []domain.EventRecord) error {
		for _, ev := range events {
			payload, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: feature_event\ndata: %s\n\n", ev.Seq, payload); err != nil {
				return err
			}
			flusher.Flush()
			cursor = ev.Seq
		}
		return nil
	}

	if err := writeEvents(initial); err != nil {
		h.logger.Error("sse initial write failed", "feature_id", featureID, "error", err)
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			events, err := h.deps.Events.ListFeatureEvents(r.Context(), projectID, featureID, cursor)
			if err != nil {
				if r.Context().Err() == nil {
					h.logger.Error("sse poll failed", "feature_id", featureID, "error", err)
				}
				return
			}
			if err := writeEvents(events); err != nil {
				h.logger.Error("sse write failed", "feature_id", featureID, "error", err)
				return
			}
		}
	}
}

func updateResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidFeatureUpdate):
		return metrics.UpdateInvalid
	case errors.Is(err, domain.ErrFeatureNotFound):
		return metrics.UpdateNotFound
	default:
		return metrics.UpdateError
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, msg)
		return uuid.Nil, false
	}
	return id, true
}

func parseFeatureParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	projectID, ok := parseIDParam(w, r, "projectID", "invalid project ID")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	featureID, ok := parseIDParam(w, r, "featureID", "invalid feature ID")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return projectID, featureID, true
}

var errInvalidAfterSeq = errors.New("invalid after_seq")

func parseAfterSeq(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seq < 0 {
		return 0, errInvalidAfterSeq
	}
	return seq, nil
}

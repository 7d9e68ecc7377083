// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/adiadia/featuredesk/internal/editor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ editor.Mutator = (*Client)(nil)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "fdk_test")
	require.NoError(t, err)
	return c
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8080", "ftp://example.com", "http://"} {
		_, err := New(raw, "tok")
		assert.ErrorIs(t, err, ErrInvalidBaseURL, raw)
	}
}

func TestUpdateFeatureSendsPatch(t *testing.T) {
	projectID := uuid.New()
	featureID := uuid.New()
	priority := 2

	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/projects/"+projectID.String()+"/features/"+featureID.String(), r.URL.Path)
		assert.Equal(t, "Bearer fdk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.Feature{
			ID:        featureID,
			ProjectID: projectID,
			Name:      "Login",
			Priority:  2,
			Steps:     []string{"a"},
		})
	})

	saved, err := c.UpdateFeature(context.Background(), projectID.String(), featureID, domain.FeatureUpdate{
		Category:    "Auth",
		Name:        "Login",
		Description: "d",
		Priority:    &priority,
	})
	require.NoError(t, err)

	assert.Equal(t, featureID, saved.ID)
	assert.Equal(t, 2, saved.Priority)
	assert.Equal(t, float64(2), gotBody["priority"])
	assert.Equal(t, []any{}, gotBody["steps"], "nil steps are sent as an empty list")
}

func TestUpdateFeatureSendsNullPriority(t *testing.T) {
	var raw map[string]json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid feature update: priority must be a whole number"}`))
	})

	_, err := c.UpdateFeature(context.Background(), uuid.NewString(), uuid.New(), domain.FeatureUpdate{
		Category:    "Auth",
		Name:        "Login",
		Description: "d",
		Steps:       []string{},
	})
	require.Error(t, err)

	assert.Equal(t, "null", string(raw["priority"]))
	assert.Equal(t, "invalid feature update: priority must be a whole number", err.Error())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestUpdateFeatureRejectsBadScope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server must not be called")
	})

	_, err := c.UpdateFeature(context.Background(), "not-a-project", uuid.New(), domain.FeatureUpdate{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid project id")
}

func TestAPIErrorWithoutMessageIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetFeature(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Empty(t, err.Error())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestAPIErrorFallsBackToPlainBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	})

	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
	assert.Equal(t, "upstream unavailable", err.Error())
}

func TestIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"feature not found"}`))
	})

	_, err := c.GetFeature(context.Background(), uuid.New(), uuid.New())
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("feature not found")))
}

func TestListFeaturesAndProjects(t *testing.T) {
	projectID := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/projects":
			_, _ = w.Write([]byte(`{"projects":[{"id":"` + projectID.String() + `","name":"demo"}]}`))
		case "/projects/" + projectID.String() + "/features":
			_, _ = w.Write([]byte(`{"project_id":"` + projectID.String() + `","features":[{"name":"a","steps":[]},{"name":"b","steps":["x"]}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "demo", projects[0].Name)

	features, err := c.ListFeatures(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, []string{"x"}, features[1].Steps)
}

func TestCreateFeatureAndProject(t *testing.T) {
	projectID := uuid.New()
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		if r.URL.Path == "/projects" {
			assert.JSONEq(t, `{"name":"demo"}`, string(body))
			_, _ = w.Write([]byte(`{"id":"` + projectID.String() + `","name":"demo"}`))
			return
		}
		assert.JSONEq(t, `{"category":"c","name":"n","description":"d","priority":4,"steps":["s"]}`, string(body))
		_, _ = w.Write([]byte(`{"name":"n","priority":4,"steps":["s"]}`))
	})

	project, err := c.CreateProject(context.Background(), domain.CreateProjectParams{Name: "demo"})
	require.NoError(t, err)
	assert.Equal(t, projectID, project.ID)

	feature, err := c.CreateFeature(context.Background(), domain.CreateFeatureParams{
		ProjectID:   projectID,
		Category:    "c",
		Name:        "n",
		Description: "d",
		Priority:    4,
		Steps:       []string{"s"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, feature.Priority)
	assert.Equal(t, []string{"POST /projects", "POST /projects/" + projectID.String() + "/features"}, paths)
}

func TestListFeatureEventsPassesCursor(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("after_seq"))
		_, _ = w.Write([]byte(`{"events":[{"seq":8,"type":"FEATURE_UPDATED"}]}`))
	})

	events, err := c.ListFeatureEvents(context.Background(), uuid.New(), uuid.New(), 7)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventFeatureUpdated, events[0].Type)
}

func TestRequestHonoursContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.ListProjects(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSessionSubmitsThroughClient(t *testing.T) {
	projectID := uuid.New()
	feature := domain.Feature{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Category:    "Auth",
		Name:        "Login",
		Description: "User can log in",
		Priority:    3,
		Steps:       []string{"Open page"},
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var update domain.FeatureUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&update))
		saved := feature
		saved.Name = update.Name
		saved.Steps = update.Steps
		_ = json.NewEncoder(w).Encode(saved)
	})

	var got domain.Feature
	session := editor.NewSession(feature, projectID.String(), c, editor.Callbacks{
		OnSaved: func(f domain.Feature) { got = f },
	})
	session.SetName("  Sign in ")

	require.NoError(t, session.Submit(context.Background()))
	assert.Equal(t, "Sign in", got.Name)
	assert.Equal(t, editor.StateDone, session.State())
}

// SPDX-License-Identifier: Apache-2.0

package featurectl

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/adiadia/featuredesk/internal/config"
	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/adiadia/featuredesk/internal/editor"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu       sync.Mutex
	feature  domain.Feature
	patches  []domain.FeatureUpdate
	projects []map[string]any
	afterSeq string
}

func newFakeAPI(t *testing.T, feature domain.Feature) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{feature: feature}
	featurePath := "/projects/" + feature.ProjectID.String() + "/features"

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+featurePath+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != feature.ID.String() {
			writeTestJSON(w, http.StatusNotFound, map[string]string{"error": "feature not found"})
			return
		}
		api.mu.Lock()
		defer api.mu.Unlock()
		writeTestJSON(w, http.StatusOK, api.feature)
	})
	mux.HandleFunc("PATCH "+featurePath+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		var update domain.FeatureUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeTestJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		api.mu.Lock()
		defer api.mu.Unlock()
		api.patches = append(api.patches, update)
		api.feature.Category = update.Category
		api.feature.Name = update.Name
		api.feature.Description = update.Description
		api.feature.Steps = update.Steps
		if update.Priority != nil {
			api.feature.Priority = *update.Priority
		}
		writeTestJSON(w, http.StatusOK, api.feature)
	})
	mux.HandleFunc("GET "+featurePath, func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		defer api.mu.Unlock()
		writeTestJSON(w, http.StatusOK, map[string]any{"features": []domain.Feature{api.feature}})
	})
	mux.HandleFunc("GET "+featurePath+"/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.afterSeq = r.URL.Query().Get("after_seq")
		api.mu.Unlock()
		writeTestJSON(w, http.StatusOK, map[string]any{"events": []domain.EventRecord{{
			ID:        uuid.New(),
			Seq:       3,
			FeatureID: feature.ID,
			Type:      domain.EventFeatureUpdated,
			CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		}}})
	})
	mux.HandleFunc("POST /projects", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		api.mu.Lock()
		api.projects = append(api.projects, body)
		api.mu.Unlock()
		writeTestJSON(w, http.StatusCreated, domain.ProjectRecord{ID: feature.ProjectID, Name: "demo"})
	})
	mux.HandleFunc("GET /projects", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, http.StatusOK, map[string]any{"projects": []domain.ProjectRecord{{ID: feature.ProjectID, Name: "demo"}}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, srv
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testFeature() domain.Feature {
	return domain.Feature{
		ID:          uuid.New(),
		ProjectID:   uuid.New(),
		Category:    "Auth",
		Name:        "Login",
		Description: "User can log in",
		Priority:    2,
		Steps:       []string{"Open page", "Submit form"},
	}
}

func isolateConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("FEATURECTL_API_URL", "")
	t.Setenv("FEATURECTL_TOKEN", "")
	t.Setenv("FEATURECTL_PROJECT", "")
	t.Setenv("FEATURECTL_LOG_FILE", dir+"/featurectl.log")
}

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func baseArgs(srv *httptest.Server, f domain.Feature) []string {
	return []string{"--api-url", srv.URL, "--token", "fdk_test", "--project", f.ProjectID.String()}
}

func TestShowYAML(t *testing.T) {
	isolateConfig(t)
	f := testFeature()
	_, srv := newFakeAPI(t, f)

	out, err := executeCommand(NewRootCommand(), append(baseArgs(srv, f), "show", f.ID.String(), "-o", "yaml")...)
	require.NoError(t, err)

	assert.Contains(t, out, "name: Login\n")
	assert.Contains(t, out, "project_id: "+f.ProjectID.String())
	assert.Contains(t, out, "  - Open page\n")
}

func TestShowJSON(t *testing.T) {
	isolateConfig(t)
	f := testFeature()
	_, srv := newFakeAPI(t, f)

	out, err := executeCommand(NewRootCommand(), append(baseArgs(srv, f), "show", f.ID.String(), "--output", "json")...)
	require.NoError(t, err)

	var view featureView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, f.ID.String(), view.ID)
	assert.Equal(t, []string{"Open page", "Submit form"}, view.Steps)
}

func TestShowText(t *testing.T) {
	isolateConfig(t)
	f := testFeature()
	_, srv := newFakeAPI(t, f)

	out, err := executeCommand(NewRootCommand(), append(baseArgs(srv, f), "show", f.ID.String())...)
	require.NoError(t, err)

	assert.Contains(t, out, "Login  [Auth]  priority 2")
	assert.Contains(t, out, "  2. Submit form")
}

func TestShowRejectsUnknownFormat(t *testing.T) {
	isolateConfig(t)
	f := testFeature()
	_, srv := newFakeAPI(t, f)

	_, err := executeCommand(NewRootCommand(), append(baseArgs(srv, f), "show", f.ID.String(), "-o", "xml")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestShowUnknownFeatureSurfacesServerMessage(t *testing.T) {
	isolateConfig(t)
	f := testFeature()
	_, srv := newFakeAPI(t, f)

	_, err := executeCommand(NewRootCommand(), append(baseArgs(srv, f), "show", uuid.NewString())...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature not found")
}

func TestListRendersTable(t *testing.T) {
	isolateConfig(t)
	f := testFeature()
	_, srv := newFakeAPI(t, f)

	out, err := executeCommand(NewRootCommand(), append(baseArgs(srv, f), "list")...)
	require.NoError(t, err)

	assert.Contains(t, out, "PRIORITY")
	assert.Contains(t, out, f.ID.String())
	assert.Contains(t, out, "Login")
}

func TestProjectsListAndCreate(t *testing.T) {
	isolateConfig(t)
	f := testFeature()
	api, srv := newFakeAPI(t, f)

	out, err := executeCommand(NewRootCommand(), append(baseArgs(srv, f), "projects")...)
	require.NoError(t, err)
	assert.Contains(t, out, "demo")

	out, err = executeCommand(NewRootCommand(), append(baseArgs(srv, f), "projects", "create", "demo", "--webhook-url", "https://hooks.example.com/f")...)
	require.NoError(t, err)
	assert.Contains(t, out, f.ProjectID.String())

	require.Len(t, api.projects, 1)
	assert.Equal(t, "demo", api.projects[0]["name"])
	assert.Equal(t, "https://hooks.example.com/f", api.projects[0]["webhook_url"])
}

func TestEventsPassesCursor(t *testing.T) {
	isolateConfig(t)
	f := testFeature()
	api, srv := newFakeAPI(t, f)

	out, err := executeCommand(NewRootCommand(), append(baseArgs(srv, f), "events", f.ID.String(), "--after", "2")...)
	require.NoError(t, err)

	assert.Contains(t, out, "FEATURE_UPDATED")
	assert.Contains(t, out, "pending")
	assert.Equal(t, "2", api.afterSeq)

	_, err = executeCommand(NewRootCommand(), append(baseArgs(srv, f), "events", f.ID.String(), "--after", "-1")...)
	require.Error(t, err)
}

func TestEditSubmitsThroughSession(t *testing.T) {
	isolateConfig(t)
	f := testFeature()
	api, srv := newFakeAPI(t, f)

	runner := func(ctx context.Context, session *editor.Session) error {
		assert.Equal(t, f.ProjectID.String(), session.Scope())
		session.SetName("Login v2")
		session.RemoveStep(session.Snapshot().Buffer.Steps[0].LocalID)
		return session.Submit(ctx)
	}

	out, err := executeCommand(NewRootCommand(WithEditorRunner(runner)), append(baseArgs(srv, f), "edit", f.ID.String())...)
	require.NoError(t, err)

	assert.Contains(t, out, `Saved "Login v2" (priority 2, 1 steps).`)
	require.Len(t, api.patches, 1)
	assert.Equal(t, []string{"Submit form"}, api.patches[0].Steps)
	require.NotNil(t, api.patches[0].Priority)
	assert.Equal(t, 2, *api.patches[0].Priority)
}

func TestEditCanceled(t *testing.T) {
	isolateConfig(t)
	f := testFeature()
	api, srv := newFakeAPI(t, f)

	runner := func(_ context.Context, session *editor.Session) error {
		session.Cancel()
		return nil
	}

	out, err := executeCommand(NewRootCommand(WithEditorRunner(runner)), append(baseArgs(srv, f), "edit", f.ID.String())...)
	require.NoError(t, err)
	assert.Contains(t, out, "No changes saved.")
	assert.Empty(t, api.patches)
}

func TestEditClosesLogFileOnError(t *testing.T) {
	isolateConfig(t)
	f := testFeature()
	_, srv := newFakeAPI(t, f)

	a := newApp(WithEditorRunner(func(context.Context, *editor.Session) error {
		t.Fatal("editor must not open for an unknown feature")
		return nil
	}))
	_, err := executeCommand(a.rootCommand(), append(baseArgs(srv, f), "edit", uuid.NewString())...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature not found")
	assert.Nil(t, a.closer)
	assert.NotNil(t, a.logger)
}

func TestMissingProject(t *testing.T) {
	isolateConfig(t)
	f := testFeature()
	_, srv := newFakeAPI(t, f)

	_, err := executeCommand(NewRootCommand(), "--api-url", srv.URL, "--token", "fdk_test", "list")
	assert.ErrorIs(t, err, errMissingProject)
}

func TestMissingToken(t *testing.T) {
	isolateConfig(t)

	_, err := executeCommand(NewRootCommand(), "--api-url", "http://localhost:1", "list")
	assert.ErrorIs(t, err, config.ErrMissingToken)
}

func TestVersionSkipsConfig(t *testing.T) {
	isolateConfig(t)

	out, err := executeCommand(NewRootCommand(WithVersion("1.2.3")), "version")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3\n", out)
}

func TestParseFormat(t *testing.T) {
	cases := map[string]outputFormat{
		"text": formatText,
		"JSON": formatJSON,
		"yaml": formatYAML,
		"yml":  formatYAML,
	}
	for in, want := range cases {
		got, err := parseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

// SPDX-License-Identifier: Apache-2.0

// Package client talks to the feature API over HTTP. *Client satisfies
// editor.Mutator so an edit session can persist through it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/google/uuid"
)

const (
	defaultTimeout   = 15 * time.Second
	maxErrorBodySize = 64 << 10
	userAgent        = "featurectl"
)

var ErrInvalidBaseURL = errors.New("invalid api base url")

// APIError is a non-2xx response. Error returns the server's message
// unchanged and is empty when the server sent none.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type Client struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		baseURL:    u,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// UpdateFeature sends a full replacement of the feature's editable fields.
// scope is the project id the feature belongs to.
func (c *Client) UpdateFeature(ctx context.Context, scope string, featureID uuid.UUID, update domain.FeatureUpdate) (domain.Feature, error) {
	projectID, err := uuid.Parse(strings.TrimSpace(scope))
	if err != nil {
		return domain.Feature{}, fmt.Errorf("invalid project id %q: %w", scope, err)
	}
	if update.Steps == nil {
		update.Steps = []string{}
	}

	var out domain.Feature
	if err := c.do(ctx, http.MethodPatch, featurePath(projectID, featureID), nil, update, &out); err != nil {
		return domain.Feature{}, err
	}
	return out, nil
}

func (c *Client) GetFeature(ctx context.Context, projectID, featureID uuid.UUID) (domain.Feature, error) {
	var out domain.Feature
	if err := c.do(ctx, http.MethodGet, featurePath(projectID, featureID), nil, nil, &out); err != nil {
		return domain.Feature{}, err
	}
	return out, nil
}

func (c *Client) ListFeatures(ctx context.Context, projectID uuid.UUID) ([]domain.Feature, error) {
	var out struct {
		Features []domain.Feature `json:"features"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects/"+projectID.String()+"/features", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Features, nil
}

func (c *Client) CreateFeature(ctx context.Context, params domain.CreateFeatureParams) (domain.Feature, error) {
	body := struct {
		Category    string   `json:"category"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Priority    int      `json:"priority"`
		Steps       []string `json:"steps"`
	}{
		Category:    params.Category,
		Name:        params.Name,
		Description: params.Description,
		Priority:    params.Priority,
		Steps:       params.Steps,
	}

	var out domain.Feature
	if err := c.do(ctx, http.MethodPost, "/projects/"+params.ProjectID.String()+"/features", nil, body, &out); err != nil {
		return domain.Feature{}, err
	}
	return out, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]domain.ProjectRecord, error) {
	var out struct {
		Projects []domain.ProjectRecord `json:"projects"`
	}
	if err := c.do(ctx, http.MethodGet, "/projects", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Projects, nil
}

func (c *Client) CreateProject(ctx context.Context, params domain.CreateProjectParams) (domain.ProjectRecord, error) {
	body := map[string]string{"name": params.Name}
	if params.WebhookURL != "" {
		body["webhook_url"] = params.WebhookURL
	}
	if params.WebhookSecret != "" {
		body["webhook_secret"] = params.WebhookSecret
	}

	var out domain.ProjectRecord
	if err := c.do(ctx, http.MethodPost, "/projects", nil, body, &out); err != nil {
		return domain.ProjectRecord{}, err
	}
	return out, nil
}

func (c *Client) ListFeatureEvents(ctx context.Context, projectID, featureID uuid.UUID, afterSeq int64) ([]domain.EventRecord, error) {
	var query url.Values
	if afterSeq > 0 {
		query = url.Values{"after_seq": {strconv.FormatInt(afterSeq, 10)}}
	}

	var out struct {
		Events []domain.EventRecord `json:"events"`
	}
	if err := c.do(ctx, http.MethodGet, featurePath(projectID, featureID)+"/events", query, nil, &out); err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("api request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

	var body struct {
		Error string `json:"error"`
	}
	msg := ""
	if err := json.Unmarshal(raw, &body); err == nil {
		msg = strings.TrimSpace(body.Error)
	} else {
		msg = strings.TrimSpace(string(raw))
	}

	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

func featurePath(projectID, featureID uuid.UUID) string {
	return "/projects/" + projectID.String() + "/features/" + featureID.String()
}

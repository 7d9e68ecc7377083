// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/url"
	"strings"

	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProjectRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewProjectRepository(pool *pgxpool.Pool, logger *slog.Logger) *ProjectRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &ProjectRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *ProjectRepository) CreateProject(ctx context.Context, params domain.CreateProjectParams) (domain.ProjectRecord, error) {
	apiKeyID, err := apiKeyIDFromContext(ctx)
	if err != nil {
		r.logger.Warn("create project denied: missing api key id", "error", err)
		return domain.ProjectRecord{}, err
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return domain.ProjectRecord{}, domain.ErrInvalidProjectName
	}

	webhookURL := strings.TrimSpace(params.WebhookURL)
	if webhookURL != "" {
		parsed, err := url.Parse(webhookURL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return domain.ProjectRecord{}, domain.ErrInvalidWebhookURL
		}
	}

	secret := strings.TrimSpace(params.WebhookSecret)
	if webhookURL != "" && secret == "" {
		if secret, err = generateWebhookSecret(); err != nil {
			r.logger.Error("generate webhook secret failed", "error", err)
			return domain.ProjectRecord{}, err
		}
	}

	record := domain.ProjectRecord{
		ID:         uuid.New(),
		Name:       name,
		WebhookURL: webhookURL,
	}
	if err := r.pool.QueryRow(ctx, `
		INSERT INTO projects (id, api_key_id, name, webhook_url, webhook_secret)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`,
		record.ID,
		apiKeyID,
		name,
		webhookURL,
		secret,
	).Scan(&record.CreatedAt); err != nil {
		r.logger.Error("insert project failed", "api_key_id", apiKeyID, "error", err)
		return domain.ProjectRecord{}, err
	}

	r.logger.Info("project created", "project_id", record.ID, "api_key_id", apiKeyID)
	return record, nil
}

func (r *ProjectRepository) ListProjects(ctx context.Context) ([]domain.ProjectRecord, error) {
	apiKeyID, err := apiKeyIDFromContext(ctx)
	if err != nil {
		r.logger.Warn("list projects denied: missing api key id", "error", err)
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, webhook_url, created_at
		FROM projects
		WHERE api_key_id=$1
		ORDER BY created_at ASC
	`, apiKeyID)
	if err != nil {
		r.logger.Error("list projects query failed", "api_key_id", apiKeyID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ProjectRecord, 0, 8)
	for rows.Next() {
		var p domain.ProjectRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.WebhookURL, &p.CreatedAt); err != nil {
			r.logger.Error("scan project row failed", "error", err)
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("rows iteration failed", "error", err)
		return nil, err
	}

	return out, nil
}

func generateWebhookSecret() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(raw), nil
}

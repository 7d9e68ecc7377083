// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/adiadia/featuredesk/internal/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FeatureRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewFeatureRepository(pool *pgxpool.Pool, logger *slog.Logger) *FeatureRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &FeatureRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *FeatureRepository) CreateFeature(ctx context.Context, params domain.CreateFeatureParams) (domain.Feature, error) {
	apiKeyID, err := apiKeyIDFromContext(ctx)
	if err != nil {
		r.logger.Warn("create feature denied: missing api key id", "project_id", params.ProjectID, "error", err)
		return domain.Feature{}, err
	}

	priority := params.Priority
	update, err := domain.NormalizeFeatureUpdate(domain.FeatureUpdate{
		Category:    params.Category,
		Name:        params.Name,
		Description: params.Description,
		Steps:       params.Steps,
		Priority:    &priority,
	})
	if err != nil {
		return domain.Feature{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("begin tx failed", "error", err)
		return domain.Feature{}, err
	}
	defer tx.Rollback(ctx)

	if err := projectOwned(ctx, tx, params.ProjectID, apiKeyID); err != nil {
		if !errors.Is(err, domain.ErrProjectNotFound) {
			r.logger.Error("project ownership check failed", "project_id", params.ProjectID, "error", err)
		}
		return domain.Feature{}, err
	}

	feature := domain.Feature{
		ID:          uuid.New(),
		ProjectID:   params.ProjectID,
		Category:    update.Category,
		Name:        update.Name,
		Description: update.Description,
		Priority:    *update.Priority,
		Steps:       update.Steps,
	}

	if err := tx.QueryRow(ctx, `
		INSERT INTO features (id, project_id, category, name, description, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`,
		feature.ID,
		feature.ProjectID,
		feature.Category,
		feature.Name,
		feature.Description,
		feature.Priority,
	).Scan(&feature.CreatedAt, &feature.UpdatedAt); err != nil {
		r.logger.Error("insert feature failed", "project_id", params.ProjectID, "error", err)
		return domain.Feature{}, err
	}

	if err := replaceSteps(ctx, tx, feature.ID, feature.Steps); err != nil {
		r.logger.Error("insert feature steps failed", "feature_id", feature.ID, "error", err)
		return domain.Feature{}, err
	}

	if err := appendEvent(ctx, tx, feature.ID, domain.EventFeatureCreated, update); err != nil {
		r.logger.Error("insert feature event failed", "feature_id", feature.ID, "error", err)
		return domain.Feature{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("commit failed", "feature_id", feature.ID, "error", err)
		return domain.Feature{}, err
	}

	r.logger.Info("feature created", "feature_id", feature.ID, "project_id", feature.ProjectID)
	return feature, nil
}

func (r *FeatureRepository) ListFeatures(ctx context.Context, projectID uuid.UUID) ([]domain.Feature, error) {
	apiKeyID, err := apiKeyIDFromContext(ctx)
	if err != nil {
		r.logger.Warn("list features denied: missing api key id", "project_id", projectID, "error", err)
		return nil, err
	}

	if err := projectOwned(ctx, r.pool, projectID, apiKeyID); err != nil {
		if !errors.Is(err, domain.ErrProjectNotFound) {
			r.logger.Error("project ownership check failed", "project_id", projectID, "error", err)
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT f.id, f.project_id, f.category, f.name, f.description, f.priority,
		       f.created_at, f.updated_at,
		       COALESCE(
		           (SELECT array_agg(s.body ORDER BY s.position)
		            FROM feature_steps s WHERE s.feature_id = f.id),
		           '{}'
		       )
		FROM features f
		WHERE f.project_id=$1
		ORDER BY f.priority ASC, f.created_at ASC
	`, projectID)
	if err != nil {
		r.logger.Error("list features query failed", "project_id", projectID, "error", err)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Feature, 0, 16)
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			r.logger.Error("scan feature row failed", "project_id", projectID, "error", err)
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("rows iteration failed", "project_id", projectID, "error", err)
		return nil, err
	}

	r.logger.Info("features fetched", "project_id", projectID, "count", len(out))
	return out, nil
}

func (r *FeatureRepository) GetFeature(ctx context.Context, projectID, featureID uuid.UUID) (domain.Feature, error) {
	apiKeyID, err := apiKeyIDFromContext(ctx)
	if err != nil {
		r.logger.Warn("get feature denied: missing api key id", "feature_id", featureID, "error", err)
		return domain.Feature{}, err
	}

	f, err := getFeature(ctx, r.pool, projectID, featureID, apiKeyID)
	if err != nil {
		if !errors.Is(err, domain.ErrFeatureNotFound) {
			r.logger.Error("get feature failed", "feature_id", featureID, "error", err)
		}
		return domain.Feature{}, err
	}
	return f, nil
}

// UpdateFeature replaces the editable fields and the full step list of a
// feature in one transaction and appends a FEATURE_UPDATED event.
func (r *FeatureRepository) UpdateFeature(ctx context.Context, projectID, featureID uuid.UUID, update domain.FeatureUpdate) (domain.Feature, error) {
	started := time.Now()
	defer func() {
		metrics.ObserveFeatureUpdateDuration(time.Since(started))
	}()

	apiKeyID, err := apiKeyIDFromContext(ctx)
	if err != nil {
		r.logger.Warn("update feature denied: missing api key id", "feature_id", featureID, "error", err)
		return domain.Feature{}, err
	}

	normalized, err := domain.NormalizeFeatureUpdate(update)
	if err != nil {
		return domain.Feature{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error("begin tx failed", "error", err)
		return domain.Feature{}, err
	}
	defer tx.Rollback(ctx)

	if err := lockFeature(ctx, tx, projectID, featureID, apiKeyID); err != nil {
		if !errors.Is(err, domain.ErrFeatureNotFound) {
			r.logger.Error("lock feature failed", "feature_id", featureID, "error", err)
		}
		return domain.Feature{}, err
	}

	current, err := getFeature(ctx, tx, projectID, featureID, apiKeyID)
	if err != nil {
		if !errors.Is(err, domain.ErrFeatureNotFound) {
			r.logger.Error("read feature for update failed", "feature_id", featureID, "error", err)
		}
		return domain.Feature{}, err
	}

	current.Category = normalized.Category
	current.Name = normalized.Name
	current.Description = normalized.Description
	current.Priority = *normalized.Priority
	current.Steps = normalized.Steps

	if err := tx.QueryRow(ctx, `
		UPDATE features
		SET category=$2, name=$3, description=$4, priority=$5, updated_at=NOW()
		WHERE id=$1
		RETURNING updated_at
	`,
		featureID,
		current.Category,
		current.Name,
		current.Description,
		current.Priority,
	).Scan(&current.UpdatedAt); err != nil {
		r.logger.Error("update feature failed", "feature_id", featureID, "error", err)
		return domain.Feature{}, err
	}

	if err := replaceSteps(ctx, tx, featureID, current.Steps); err != nil {
		r.logger.Error("replace feature steps failed", "feature_id", featureID, "error", err)
		return domain.Feature{}, err
	}

	if err := appendEvent(ctx, tx, featureID, domain.EventFeatureUpdated, normalized); err != nil {
		r.logger.Error("insert feature event failed", "feature_id", featureID, "error", err)
		return domain.Feature{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error("commit update failed", "feature_id", featureID, "error", err)
		return domain.Feature{}, err
	}

	r.logger.Info("feature updated",
		"feature_id", featureID,
		"project_id", projectID,
		"steps", len(current.Steps),
	)
	return current, nil
}

// lockFeature takes a row lock on the feature so concurrent updates of the
// same feature serialize; the last committed update wins.
func lockFeature(ctx context.Context, tx pgx.Tx, projectID, featureID, apiKeyID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT f.id
		FROM features f
		JOIN projects p ON p.id = f.project_id
		WHERE f.id=$1 AND f.project_id=$2 AND p.api_key_id=$3
		FOR UPDATE OF f
	`, featureID, projectID, apiKeyID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrFeatureNotFound
	}
	return err
}

func getFeature(ctx context.Context, q querier, projectID, featureID, apiKeyID uuid.UUID) (domain.Feature, error) {
	f, err := scanFeature(q.QueryRow(ctx, `
		SELECT f.id, f.project_id, f.category, f.name, f.description, f.priority,
		       f.created_at, f.updated_at,
		       COALESCE(
		           (SELECT array_agg(s.body ORDER BY s.position)
		            FROM feature_steps s WHERE s.feature_id = f.id),
		           '{}'
		       )
		FROM features f
		JOIN projects p ON p.id = f.project_id
		WHERE f.id=$1 AND f.project_id=$2 AND p.api_key_id=$3
	`, featureID, projectID, apiKeyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Feature{}, domain.ErrFeatureNotFound
	}
	return f, err
}

func scanFeature(row pgx.Row) (domain.Feature, error) {
	var f domain.Feature
	if err := row.Scan(
		&f.ID,
		&f.ProjectID,
		&f.Category,
		&f.Name,
		&f.Description,
		&f.Priority,
		&f.CreatedAt,
		&f.UpdatedAt,
		&f.Steps,
	); err != nil {
		return domain.Feature{}, err
	}
	if f.Steps == nil {
		f.Steps = []string{}
	}
	return f, nil
}

func replaceSteps(ctx context.Context, tx pgx.Tx, featureID uuid.UUID, steps []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM feature_steps WHERE feature_id=$1`, featureID); err != nil {
		return err
	}
	if len(steps) == 0 {
		return nil
	}

	rows := make([][]any, len(steps))
	for i, body := range steps {
		rows[i] = []any{featureID, i, body}
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"feature_steps"},
		[]string{"feature_id", "position", "body"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func appendEvent(ctx context.Context, tx pgx.Tx, featureID uuid.UUID, eventType domain.EventType, payload domain.FeatureUpdate) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO feature_events (id, feature_id, type, payload)
		 VALUES ($1, $2, $3, $4)`,
		uuid.New(), featureID, eventType, body,
	)
	return err
}

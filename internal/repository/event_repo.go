// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewEventRepository(pool *pgxpool.Pool, logger *slog.Logger) *EventRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &EventRepository{
		pool:   pool,
		logger: logger,
	}
}

// ListFeatureEvents returns the event log of one feature after afterSeq,
// oldest first. A feature outside the caller's tenant yields
// domain.ErrFeatureNotFound.
func (r *EventRepository) ListFeatureEvents(ctx context.Context, projectID, featureID uuid.UUID, afterSeq int64) ([]domain.EventRecord, error) {
	apiKeyID, err := apiKeyIDFromContext(ctx)
	if err != nil {
		r.logger.Warn("list events denied: missing api key id", "feature_id", featureID, "error", err)
		return nil, err
	}

	if _, err := getFeature(ctx, r.pool, projectID, featureID, apiKeyID); err != nil {
		if !errors.Is(err, domain.ErrFeatureNotFound) {
			r.logger.Error("check feature for events failed", "feature_id", featureID, "error", err)
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, seq, feature_id, type, payload, created_at, delivered_at
		FROM feature_events
		WHERE feature_id=$1
		  AND seq > $2
		ORDER BY seq ASC
	`,
		featureID,
		afterSeq,
	)
	if err != nil {
		r.logger.Error("list events query failed",
			"feature_id", featureID,
			"api_key_id", apiKeyID,
			"error", err,
		)
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.EventRecord, 0, 8)
	for rows.Next() {
		var ev domain.EventRecord
		if err := rows.Scan(
			&ev.ID,
			&ev.Seq,
			&ev.FeatureID,
			&ev.Type,
			&ev.Payload,
			&ev.CreatedAt,
			&ev.DeliveredAt,
		); err != nil {
			r.logger.Error("scan event row failed", "feature_id", featureID, "error", err)
			return nil, err
		}
		out = append(out, ev)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("rows iteration failed", "feature_id", featureID, "error", err)
		return nil, err
	}

	return out, nil
}

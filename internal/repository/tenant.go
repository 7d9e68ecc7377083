// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"context"
	"errors"

	"github.com/adiadia/featuredesk/internal/auth"
	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func apiKeyIDFromContext(ctx context.Context) (uuid.UUID, error) {
	id, ok := auth.APIKeyIDFromContext(ctx)
	if !ok {
		return uuid.Nil, auth.ErrMissingAPIKeyID
	}
	return id, nil
}

// projectOwned returns domain.ErrProjectNotFound when projectID does not
// exist or belongs to another tenant, so foreign projects look absent.
func projectOwned(ctx context.Context, q querier, projectID, apiKeyID uuid.UUID) error {
	var exists int
	err := q.QueryRow(ctx,
		`SELECT 1 FROM projects WHERE id=$1 AND api_key_id=$2`,
		projectID,
		apiKeyID,
	).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrProjectNotFound
	}
	return err
}

// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"

	"github.com/adiadia/featuredesk/internal/auth"
	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/google/uuid"
)

type ProjectStore interface {
	CreateProject(ctx context.Context, params domain.CreateProjectParams) (domain.ProjectRecord, error)
	ListProjects(ctx context.Context) ([]domain.ProjectRecord, error)
}

type FeatureStore interface {
	CreateFeature(ctx context.Context, params domain.CreateFeatureParams) (domain.Feature, error)
	ListFeatures(ctx context.Context, projectID uuid.UUID) ([]domain.Feature, error)
	GetFeature(ctx context.Context, projectID, featureID uuid.UUID) (domain.Feature, error)
	UpdateFeature(ctx context.Context, projectID, featureID uuid.UUID, update domain.FeatureUpdate) (domain.Feature, error)
}

type EventLister interface {
	ListFeatureEvents(ctx context.Context, projectID, featureID uuid.UUID, afterSeq int64) ([]domain.EventRecord, error)
}

type APIKeyResolver interface {
	ResolveAPIKey(ctx context.Context, bearerToken string) (auth.APIKey, bool, error)
}

type APIKeyManager interface {
	CreateAPIKey(ctx context.Context, params domain.CreateAPIKeyParams) (domain.CreatedAPIKey, error)
	ListAPIKeys(ctx context.Context) ([]domain.APIKeyRecord, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

type HealthChecker interface {
	Check(ctx context.Context) error
}

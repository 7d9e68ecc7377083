// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrMissingAPIKeyID is returned by tenant-scoped operations called without
// an authenticated key on the context.
var ErrMissingAPIKeyID = errors.New("missing api key id in context")

type apiKeyIDContextKey struct{}
type apiKeyContextKey struct{}

var ctxAPIKeyIDKey apiKeyIDContextKey
var ctxAPIKeyKey apiKeyContextKey

// APIKey is the authenticated tenant. Projects and their features are only
// visible to the key that created them.
type APIKey struct {
	ID                uuid.UUID
	MaxRequestsPerMin int
}

// WithAPIKeyID stores the authenticated tenant id on the request context.
func WithAPIKeyID(ctx context.Context, apiKeyID uuid.UUID) context.Context {
	return context.WithValue(ctx, ctxAPIKeyIDKey, apiKeyID)
}

// WithAPIKey stores the resolved API key and limits on request context.
func WithAPIKey(ctx context.Context, key APIKey) context.Context {
	ctx = context.WithValue(ctx, ctxAPIKeyKey, key)
	return context.WithValue(ctx, ctxAPIKeyIDKey, key.ID)
}

// APIKeyIDFromContext reads the authenticated tenant id from context.
func APIKeyIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if key, ok := APIKeyFromContext(ctx); ok {
		return key.ID, true
	}

	id, ok := ctx.Value(ctxAPIKeyIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// APIKeyFromContext reads the resolved API key and limits from context.
func APIKeyFromContext(ctx context.Context) (APIKey, bool) {
	key, ok := ctx.Value(ctxAPIKeyKey).(APIKey)
	if !ok || key.ID == uuid.Nil {
		return APIKey{}, false
	}
	return key, true
}

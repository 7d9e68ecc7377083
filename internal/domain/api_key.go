// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxRequestsPerMin = 120
	MaxAPIKeyNameLen         = 64
)

type CreateAPIKeyParams struct {
	Name              string
	MaxRequestsPerMin int
}

type CreatedAPIKey struct {
	ID    uuid.UUID
	Token string
}

// APIKeyRecord is an active key as listed to admins. Projects counts the
// tenant's projects.
type APIKeyRecord struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	MaxRequestsPerMin int       `json:"max_requests_per_min"`
	Projects          int       `json:"projects"`
	CreatedAt         time.Time `json:"created_at"`
}

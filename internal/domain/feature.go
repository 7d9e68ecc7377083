// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinFeaturePriority = 1
	MaxFeatureSteps    = 200
)

// Feature is the persisted entity edited by a session. Callers treat a
// Feature value as a snapshot and never mutate its Steps in place.
type Feature struct {
	ID          uuid.UUID `json:"id"`
	ProjectID   uuid.UUID `json:"project_id"`
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Priority    int       `json:"priority"`
	Steps       []string  `json:"steps"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a copy whose Steps slice does not alias f.Steps.
func (f Feature) Clone() Feature {
	out := f
	out.Steps = append(make([]string, 0, len(f.Steps)), f.Steps...)
	return out
}

// FeatureUpdate is the full replacement payload for a feature's editable
// fields. Priority is nil when the editor could not parse the priority text.
type FeatureUpdate struct {
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	Priority    *int     `json:"priority"`
}

type CreateFeatureParams struct {
	ProjectID   uuid.UUID
	Category    string
	Name        string
	Description string
	Priority    int
	Steps       []string
}

// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventFeatureCreated EventType = "FEATURE_CREATED"
	EventFeatureUpdated EventType = "FEATURE_UPDATED"
)

type EventRecord struct {
	ID          uuid.UUID       `json:"id"`
	Seq         int64           `json:"seq"`
	FeatureID   uuid.UUID       `json:"feature_id"`
	Type        EventType       `json:"type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}

// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/google/uuid"
)

const (
	webhookHeaderSig   = "X-Signature"
	webhookHeaderEvent = "X-Featuredesk-Event"
)

type webhookPayload struct {
	EventID   uuid.UUID        `json:"event_id"`
	FeatureID uuid.UUID        `json:"feature_id"`
	ProjectID uuid.UUID        `json:"project_id"`
	Type      domain.EventType `json:"type"`
	Payload   json.RawMessage  `json:"payload"`
	CreatedAt time.Time        `json:"created_at"`
}

// deliver makes one POST of the event to the project webhook. Any non-2xx
// response counts as a failure.
func (n *Notifier) deliver(ctx context.Context, ev claimedEvent) error {
	payload := ev.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	body, err := json.Marshal(webhookPayload{
		EventID:   ev.ID,
		FeatureID: ev.FeatureID,
		ProjectID: ev.ProjectID,
		Type:      ev.Type,
		Payload:   payload,
		CreatedAt: ev.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ev.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhookHeaderEvent, string(ev.Type))
	if signature := signWebhookPayload(ev.WebhookSecret, body); signature != "" {
		req.Header.Set(webhookHeaderSig, signature)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return nil
}

func signWebhookPayload(secret string, payload []byte) string {
	if strings.TrimSpace(secret) == "" {
		return ""
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an X-Signature header value against body. Receivers
// can use it to authenticate deliveries.
func VerifySignature(secret string, body []byte, signature string) bool {
	want := signWebhookPayload(secret, body)
	if want == "" {
		return false
	}
	return hmac.Equal([]byte(want), []byte(strings.TrimSpace(signature)))
}

// SPDX-License-Identifier: Apache-2.0

package domain

import (
	"fmt"
	"strings"
)

// NormalizeFeatureUpdate trims scalar fields and steps, drops blank steps and
// rejects updates a feature row cannot hold. The returned error wraps
// ErrInvalidFeatureUpdate and names the offending field.
func NormalizeFeatureUpdate(u FeatureUpdate) (FeatureUpdate, error) {
	out := FeatureUpdate{
		Category:    strings.TrimSpace(u.Category),
		Name:        strings.TrimSpace(u.Name),
		Description: strings.TrimSpace(u.Description),
		Steps:       make([]string, 0, len(u.Steps)),
		Priority:    u.Priority,
	}

	switch {
	case out.Category == "":
		return FeatureUpdate{}, fmt.Errorf("%w: category is required", ErrInvalidFeatureUpdate)
	case out.Name == "":
		return FeatureUpdate{}, fmt.Errorf("%w: name is required", ErrInvalidFeatureUpdate)
	case out.Description == "":
		return FeatureUpdate{}, fmt.Errorf("%w: description is required", ErrInvalidFeatureUpdate)
	case out.Priority == nil:
		return FeatureUpdate{}, fmt.Errorf("%w: priority must be a whole number", ErrInvalidFeatureUpdate)
	case *out.Priority < MinFeaturePriority:
		return FeatureUpdate{}, fmt.Errorf("%w: priority must be at least %d", ErrInvalidFeatureUpdate, MinFeaturePriority)
	}

	for _, step := range u.Steps {
		step = strings.TrimSpace(step)
		if step == "" {
			continue
		}
		out.Steps = append(out.Steps, step)
	}
	if len(out.Steps) > MaxFeatureSteps {
		return FeatureUpdate{}, fmt.Errorf("%w: at most %d steps allowed", ErrInvalidFeatureUpdate, MaxFeatureSteps)
	}

	return out, nil
}

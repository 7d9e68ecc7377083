// SPDX-License-Identifier: Apache-2.0

package editor

import (
	"slices"
	"strconv"
	"strings"

	"github.com/adiadia/featuredesk/internal/domain"
)

// Buffer is the in-progress copy of a feature's editable fields. Priority is
// kept as raw text so half-typed numbers survive between keystrokes.
type Buffer struct {
	Category     string      `json:"category"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	PriorityText string      `json:"priority_text"`
	Steps        []StepEntry `json:"steps"`
}

// Validity describes which required fields are filled in. Only Valid gates
// submission; PriorityOK is informational.
type Validity struct {
	Valid          bool
	CategoryOK     bool
	NameOK         bool
	DescriptionOK  bool
	PriorityOK     bool
	PriorityParsed int
}

// ParsePriority parses the trimmed priority text as a base-10 integer.
// Parsing is strict: "2abc" is malformed, not 2, and BuildUpdate then sends a
// null priority.
func ParsePriority(text string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, false
	}
	return v, true
}

// Validate checks that category, name and description are non-blank.
func Validate(buf Buffer) Validity {
	v := Validity{
		CategoryOK:    strings.TrimSpace(buf.Category) != "",
		NameOK:        strings.TrimSpace(buf.Name) != "",
		DescriptionOK: strings.TrimSpace(buf.Description) != "",
	}
	v.PriorityParsed, v.PriorityOK = ParsePriority(buf.PriorityText)
	v.Valid = v.CategoryOK && v.NameOK && v.DescriptionOK
	return v
}

// HasChanges reports whether buf differs from original once scalars are
// trimmed, priority parsed and steps normalized. An unparsable priority never
// matches the original.
func HasChanges(original domain.Feature, buf Buffer) bool {
	if strings.TrimSpace(buf.Category) != original.Category ||
		strings.TrimSpace(buf.Name) != original.Name ||
		strings.TrimSpace(buf.Description) != original.Description {
		return true
	}

	priority, ok := ParsePriority(buf.PriorityText)
	if !ok || priority != original.Priority {
		return true
	}

	return !slices.Equal(NormalizeSteps(buf.Steps), original.Steps)
}

// CanSubmit is the submission gate: valid, dirty and not already submitting.
func CanSubmit(original domain.Feature, buf Buffer, submitting bool) bool {
	return !submitting && Validate(buf).Valid && HasChanges(original, buf)
}

// BuildUpdate normalizes buf into the payload sent to the mutation.
func BuildUpdate(buf Buffer) domain.FeatureUpdate {
	update := domain.FeatureUpdate{
		Category:    strings.TrimSpace(buf.Category),
		Name:        strings.TrimSpace(buf.Name),
		Description: strings.TrimSpace(buf.Description),
		Steps:       NormalizeSteps(buf.Steps),
	}
	if p, ok := ParsePriority(buf.PriorityText); ok {
		update.Priority = &p
	}
	return update
}

// BufferFromFeature seeds a buffer with f's values and a fresh step list.
func BufferFromFeature(f domain.Feature, steps *StepList) Buffer {
	return Buffer{
		Category:     f.Category,
		Name:         f.Name,
		Description:  f.Description,
		PriorityText: strconv.Itoa(f.Priority),
		Steps:        steps.Entries(),
	}
}

// SPDX-License-Identifier: Apache-2.0

package editor

import (
	"testing"

	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginFeature() domain.Feature {
	return domain.Feature{
		ID:          uuid.MustParse("6f1c8c1e-8e44-4b38-9d63-0b6f3f0e2a11"),
		Category:    "UI",
		Name:        "Login form",
		Description: "desc",
		Priority:    2,
		Steps:       []string{"click", "type", "submit"},
	}
}

func mirror(f domain.Feature) Buffer {
	return BufferFromFeature(f, NewStepList("t", f.Steps))
}

func TestHasChangesFalseForMirror(t *testing.T) {
	f := loginFeature()
	buf := mirror(f)

	assert.False(t, HasChanges(f, buf))

	buf.Category = "  UI  "
	buf.PriorityText = " 2 "
	buf.Steps = append(buf.Steps, StepEntry{LocalID: "extra", Value: "   "})
	assert.False(t, HasChanges(f, buf), "trimmed, parsed and normalized values still mirror the original")
}

func TestHasChangesEachAxis(t *testing.T) {
	f := loginFeature()

	cases := map[string]func(*Buffer){
		"category":    func(b *Buffer) { b.Category = "Backend" },
		"name":        func(b *Buffer) { b.Name = "Signup form" },
		"description": func(b *Buffer) { b.Description = "other" },
		"priority":    func(b *Buffer) { b.PriorityText = "3" },
		"steps order": func(b *Buffer) { b.Steps[0], b.Steps[1] = b.Steps[1], b.Steps[0] },
		"steps value": func(b *Buffer) { b.Steps[1].Value = "type creds" },
		"steps shorter": func(b *Buffer) {
			b.Steps = b.Steps[:2]
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			buf := mirror(f)
			mutate(&buf)
			assert.True(t, HasChanges(f, buf))
		})
	}
}

func TestHasChangesZeroStepFeature(t *testing.T) {
	f := loginFeature()
	f.Steps = nil
	buf := mirror(f)

	require.Len(t, buf.Steps, 1)
	assert.False(t, HasChanges(f, buf))

	buf.Steps[0].Value = "first"
	assert.True(t, HasChanges(f, buf))
}

func TestValidateRequiresScalarFields(t *testing.T) {
	f := loginFeature()

	for _, field := range []string{"category", "name", "description"} {
		t.Run(field, func(t *testing.T) {
			buf := mirror(f)
			switch field {
			case "category":
				buf.Category = "   "
			case "name":
				buf.Name = ""
			case "description":
				buf.Description = "\t\n"
			}
			assert.False(t, Validate(buf).Valid)
		})
	}

	assert.True(t, Validate(mirror(f)).Valid)
}

func TestParsePriority(t *testing.T) {
	v, ok := ParsePriority(" 7 ")
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	for _, raw := range []string{"", "abc", "2.5", "1e3", "2abc", "7 x"} {
		_, ok := ParsePriority(raw)
		assert.False(t, ok, raw)
	}
}

func TestMalformedPriorityForcesDirtyButStaysValid(t *testing.T) {
	f := loginFeature()
	buf := mirror(f)
	buf.PriorityText = "abc"

	v := Validate(buf)
	assert.True(t, v.Valid)
	assert.False(t, v.PriorityOK)
	assert.True(t, HasChanges(f, buf))
	assert.True(t, CanSubmit(f, buf, false))
	assert.Nil(t, BuildUpdate(buf).Priority)
}

func TestCanSubmitGate(t *testing.T) {
	f := loginFeature()

	clean := mirror(f)
	assert.False(t, CanSubmit(f, clean, false), "unchanged")

	dirty := mirror(f)
	dirty.Name = "New name"
	assert.True(t, CanSubmit(f, dirty, false))
	assert.False(t, CanSubmit(f, dirty, true), "already submitting")

	invalid := mirror(f)
	invalid.Name = ""
	assert.False(t, CanSubmit(f, invalid, false), "invalid even though dirty")
}

func TestBuildUpdateNormalizes(t *testing.T) {
	buf := Buffer{
		Category:     " UI ",
		Name:         " Login form",
		Description:  "desc ",
		PriorityText: "4",
		Steps:        []StepEntry{{LocalID: "a", Value: " x "}, {LocalID: "b", Value: ""}},
	}

	got := BuildUpdate(buf)
	require.NotNil(t, got.Priority)
	assert.Equal(t, 4, *got.Priority)
	assert.Equal(t, "UI", got.Category)
	assert.Equal(t, "Login form", got.Name)
	assert.Equal(t, "desc", got.Description)
	assert.Equal(t, []string{"x"}, got.Steps)
}

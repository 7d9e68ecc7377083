// SPDX-License-Identifier: Apache-2.0

package editor

import (
	"strconv"
	"strings"
)

const defaultStepPrefix = "step"

// StepEntry is one editable step row. LocalID is minted when the row is
// created and never changes or gets reused, regardless of where the row sits.
type StepEntry struct {
	LocalID string `json:"local_id"`
	Value   string `json:"value"`
}

// StepList owns the rows of one edit session. Rows are addressed by LocalID,
// never by index. The list always holds at least one row.
type StepList struct {
	prefix  string
	minted  int
	entries []StepEntry
}

// NewStepList creates one row per step, or a single empty row when steps is
// empty.
func NewStepList(prefix string, steps []string) *StepList {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultStepPrefix
	}

	l := &StepList{
		prefix:  prefix,
		entries: make([]StepEntry, 0, max(len(steps), 1)),
	}
	for _, step := range steps {
		l.entries = append(l.entries, StepEntry{LocalID: l.mint(), Value: step})
	}
	if len(l.entries) == 0 {
		l.entries = append(l.entries, StepEntry{LocalID: l.mint()})
	}
	return l
}

func (l *StepList) mint() string {
	l.minted++
	return l.prefix + "-" + strconv.Itoa(l.minted)
}

func (l *StepList) indexOf(localID string) int {
	for i, e := range l.entries {
		if e.LocalID == localID {
			return i
		}
	}
	return -1
}

// Len reports the number of rows.
func (l *StepList) Len() int { return len(l.entries) }

// Entries returns a copy of the rows in display order.
func (l *StepList) Entries() []StepEntry {
	return append([]StepEntry(nil), l.entries...)
}

// AddStep appends an empty row with a fresh id and returns it.
func (l *StepList) AddStep() StepEntry {
	entry := StepEntry{LocalID: l.mint()}
	l.entries = append(l.entries, entry)
	return entry
}

// RemoveStep drops the row with localID. It refuses to remove the last row
// and ignores unknown ids.
func (l *StepList) RemoveStep(localID string) bool {
	if len(l.entries) <= 1 {
		return false
	}
	i := l.indexOf(localID)
	if i < 0 {
		return false
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	return true
}

// UpdateStep replaces the value of the row with localID.
func (l *StepList) UpdateStep(localID, value string) bool {
	i := l.indexOf(localID)
	if i < 0 {
		return false
	}
	l.entries[i].Value = value
	return true
}

// MoveStep shifts the row with localID by delta positions, clamped to the
// bounds of the list. It reports whether the row actually moved.
func (l *StepList) MoveStep(localID string, delta int) bool {
	from := l.indexOf(localID)
	if from < 0 || delta == 0 {
		return false
	}
	to := min(max(from+delta, 0), len(l.entries)-1)
	if to == from {
		return false
	}

	entry := l.entries[from]
	if to > from {
		copy(l.entries[from:to], l.entries[from+1:to+1])
	} else {
		copy(l.entries[to+1:from+1], l.entries[to:from])
	}
	l.entries[to] = entry
	return true
}

// Normalize returns the trimmed, non-blank step values in order.
func (l *StepList) Normalize() []string {
	return NormalizeSteps(l.entries)
}

// NormalizeSteps trims every value and drops the blank ones, keeping order.
// The result is never nil.
func NormalizeSteps(entries []StepEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		v := strings.TrimSpace(e.Value)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

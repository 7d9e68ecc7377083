// SPDX-License-Identifier: Apache-2.0

package editor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/adiadia/featuredesk/internal/metrics"
	"github.com/google/uuid"
)

// FallbackErrorMessage is shown when a failed mutation carries no message.
const FallbackErrorMessage = "Failed to update feature"

var ErrSubmitNotAllowed = errors.New("submit not allowed")
var ErrNotSubmitting = errors.New("no submission in flight")

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateError
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateError:
		return "error"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Mutator persists a feature update. scope identifies the project the feature
// belongs to and is passed through untouched.
type Mutator interface {
	UpdateFeature(ctx context.Context, scope string, featureID uuid.UUID, update domain.FeatureUpdate) (domain.Feature, error)
}

// Callbacks notify the enclosing surface. OnSaved runs once after a
// successful mutation; OnClose runs once when the session ends.
type Callbacks struct {
	OnSaved func(domain.Feature)
	OnClose func()
}

type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDPrefix fixes the prefix used for step ids.
func WithIDPrefix(prefix string) Option {
	return func(s *Session) {
		s.idPrefix = prefix
	}
}

// Session is one edit interaction over a single feature.
type Session struct {
	mu sync.Mutex

	original  domain.Feature
	scope     string
	mutator   Mutator
	callbacks Callbacks
	logger    *slog.Logger
	idPrefix  string

	category     string
	name         string
	description  string
	priorityText string
	steps        *StepList

	state        State
	errorMessage string
	canceled     bool
	saved        *domain.Feature
}

func NewSession(feature domain.Feature, scope string, mutator Mutator, callbacks Callbacks, opts ...Option) *Session {
	if mutator == nil {
		panic("editor.NewSession requires a mutator")
	}

	s := &Session{
		original:  feature.Clone(),
		scope:     scope,
		mutator:   mutator,
		callbacks: callbacks,
		logger:    slog.Default(),
		idPrefix:  strings.SplitN(uuid.NewString(), "-", 2)[0],
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.steps = NewStepList(s.idPrefix, s.original.Steps)
	buf := BufferFromFeature(s.original, s.steps)
	s.category = buf.Category
	s.name = buf.Name
	s.description = buf.Description
	s.priorityText = buf.PriorityText

	s.logger.Debug("edit session opened",
		"feature_id", s.original.ID,
		"scope", scope,
		"steps", s.steps.Len(),
	)

	return s
}

// Original returns the snapshot the session was opened with.
func (s *Session) Original() domain.Feature {
	return s.original.Clone()
}

func (s *Session) Scope() string { return s.scope }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// edit applies fn unless the session has ended. Edits are accepted while a
// submission is in flight.
func (s *Session) edit(fn func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDone {
		return false
	}
	return fn()
}

func (s *Session) SetCategory(v string) bool {
	return s.edit(func() bool { s.category = v; return true })
}

func (s *Session) SetName(v string) bool {
	return s.edit(func() bool { s.name = v; return true })
}

func (s *Session) SetDescription(v string) bool {
	return s.edit(func() bool { s.description = v; return true })
}

func (s *Session) SetPriorityText(v string) bool {
	return s.edit(func() bool { s.priorityText = v; return true })
}

// AddStep appends an empty step row and returns its id, or "" once the
// session has ended.
func (s *Session) AddStep() string {
	var id string
	s.edit(func() bool {
		id = s.steps.AddStep().LocalID
		return true
	})
	return id
}

func (s *Session) RemoveStep(localID string) bool {
	return s.edit(func() bool { return s.steps.RemoveStep(localID) })
}

func (s *Session) UpdateStep(localID, value string) bool {
	return s.edit(func() bool { return s.steps.UpdateStep(localID, value) })
}

func (s *Session) MoveStep(localID string, delta int) bool {
	return s.edit(func() bool { return s.steps.MoveStep(localID, delta) })
}

// Snapshot is a consistent view of the session, recomputed on every call.
type Snapshot struct {
	State        State
	Buffer       Buffer
	Validity     Validity
	Dirty        bool
	CanSubmit    bool
	ErrorMessage string
	Canceled     bool
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.bufferLocked()
	dirty := HasChanges(s.original, buf)
	validity := Validate(buf)

	return Snapshot{
		State:        s.state,
		Buffer:       buf,
		Validity:     validity,
		Dirty:        dirty,
		CanSubmit:    s.canSubmitLocked(validity, dirty),
		ErrorMessage: s.errorMessage,
		Canceled:     s.canceled,
	}
}

func (s *Session) bufferLocked() Buffer {
	return Buffer{
		Category:     s.category,
		Name:         s.name,
		Description:  s.description,
		PriorityText: s.priorityText,
		Steps:        s.steps.Entries(),
	}
}

func (s *Session) canSubmitLocked(validity Validity, dirty bool) bool {
	if s.state != StateIdle && s.state != StateError {
		return false
	}
	return validity.Valid && dirty
}

// Submission is one mutation attempt prepared by BeginSubmit.
type Submission struct {
	FeatureID uuid.UUID
	Scope     string
	Update    domain.FeatureUpdate

	mutator Mutator
}

// Result is the settled outcome of a Submission.
type Result struct {
	Feature domain.Feature
	Err     error
}

// Execute runs the mutation. It does not touch session state and may run on
// any goroutine.
func (sub Submission) Execute(ctx context.Context) Result {
	feature, err := sub.mutator.UpdateFeature(ctx, sub.Scope, sub.FeatureID, sub.Update)
	return Result{Feature: feature, Err: err}
}

// BeginSubmit checks the gate and moves the session to Submitting. It
// returns ErrSubmitNotAllowed when the form is invalid, unchanged, already
// submitting or closed.
func (s *Session) BeginSubmit() (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf := s.bufferLocked()
	if !s.canSubmitLocked(Validate(buf), HasChanges(s.original, buf)) {
		metrics.IncEditorSubmission(metrics.SubmissionRejected)
		return Submission{}, ErrSubmitNotAllowed
	}

	s.state = StateSubmitting
	sub := Submission{
		FeatureID: s.original.ID,
		Scope:     s.scope,
		Update:    BuildUpdate(buf),
		mutator:   s.mutator,
	}

	s.logger.Info("feature update submitted",
		"feature_id", sub.FeatureID,
		"scope", sub.Scope,
		"steps", len(sub.Update.Steps),
	)
	return sub, nil
}

// Complete settles the in-flight submission. Success ends the session and
// fires OnSaved then OnClose; failure keeps the buffer and records the error
// message for display.
func (s *Session) Complete(res Result) error {
	s.mu.Lock()
	if s.state != StateSubmitting {
		s.mu.Unlock()
		return ErrNotSubmitting
	}

	if res.Err != nil {
		s.state = StateError
		s.errorMessage = errorMessage(res.Err)
		s.mu.Unlock()

		metrics.IncEditorSubmission(metrics.SubmissionFailed)
		s.logger.Warn("feature update failed",
			"feature_id", s.original.ID,
			"scope", s.scope,
			"error", res.Err,
		)
		return nil
	}

	s.state = StateDone
	s.errorMessage = ""
	saved := res.Feature
	s.saved = &saved
	callbacks := s.callbacks
	s.mu.Unlock()

	metrics.IncEditorSubmission(metrics.SubmissionSucceeded)
	s.logger.Info("feature update saved",
		"feature_id", s.original.ID,
		"scope", s.scope,
	)

	if callbacks.OnSaved != nil {
		callbacks.OnSaved(saved)
	}
	if callbacks.OnClose != nil {
		callbacks.OnClose()
	}
	return nil
}

// Submit runs one full submission synchronously. It returns
// ErrSubmitNotAllowed when the gate is closed and the mutation error when the
// call fails.
func (s *Session) Submit(ctx context.Context) error {
	sub, err := s.BeginSubmit()
	if err != nil {
		return err
	}

	res := sub.Execute(ctx)
	if err := s.Complete(res); err != nil {
		return err
	}
	return res.Err
}

// DismissError clears the error message and returns to Idle.
func (s *Session) DismissError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateError {
		return false
	}
	s.state = StateIdle
	s.errorMessage = ""
	return true
}

// Cancel ends the session without saving. It is ignored while a submission
// is in flight or after the session has ended.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	if s.state == StateSubmitting || s.state == StateDone {
		s.mu.Unlock()
		return false
	}
	s.state = StateDone
	s.canceled = true
	s.errorMessage = ""
	onClose := s.callbacks.OnClose
	s.mu.Unlock()

	metrics.IncEditorSubmission(metrics.SubmissionCanceled)
	s.logger.Info("edit session canceled", "feature_id", s.original.ID, "scope", s.scope)

	if onClose != nil {
		onClose()
	}
	return true
}

// Saved returns the feature returned by the successful mutation.
func (s *Session) Saved() (domain.Feature, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		return domain.Feature{}, false
	}
	return s.saved.Clone(), true
}

func errorMessage(err error) string {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return FallbackErrorMessage
	}
	return msg
}

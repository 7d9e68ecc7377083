// SPDX-License-Identifier: Apache-2.0

package editor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/adiadia/featuredesk/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mutateCall struct {
	scope     string
	featureID uuid.UUID
	update    domain.FeatureUpdate
}

type mockMutator struct {
	mu    sync.Mutex
	calls []mutateCall
	err   error
	block chan struct{}
}

func (m *mockMutator) UpdateFeature(ctx context.Context, scope string, featureID uuid.UUID, update domain.FeatureUpdate) (domain.Feature, error) {
	m.mu.Lock()
	m.calls = append(m.calls, mutateCall{scope: scope, featureID: featureID, update: update})
	block := m.block
	err := m.err
	m.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return domain.Feature{}, err
	}

	out := domain.Feature{
		ID:          featureID,
		Category:    update.Category,
		Name:        update.Name,
		Description: update.Description,
		Steps:       update.Steps,
	}
	if update.Priority != nil {
		out.Priority = *update.Priority
	}
	return out, nil
}

func (m *mockMutator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type callbackRecorder struct {
	saved  int
	closed int
	last   domain.Feature
}

func (r *callbackRecorder) callbacks() Callbacks {
	return Callbacks{
		OnSaved: func(f domain.Feature) {
			r.saved++
			r.last = f
		},
		OnClose: func() { r.closed++ },
	}
}

func newTestSession(t *testing.T, f domain.Feature, m Mutator, rec *callbackRecorder) *Session {
	t.Helper()
	return NewSession(f, "project-1", m, rec.callbacks(),
		WithIDPrefix("t"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestSessionStartsIdleWithOriginalValues(t *testing.T) {
	rec := &callbackRecorder{}
	s := newTestSession(t, loginFeature(), &mockMutator{}, rec)

	snap := s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, []string{"click", "type", "submit"}, values(snap.Buffer.Steps))
	assert.Equal(t, "2", snap.Buffer.PriorityText)
	assert.True(t, snap.Validity.Valid)
	assert.False(t, snap.Dirty)
	assert.False(t, snap.CanSubmit)
}

func TestSessionScenarioEditStepAndSubmit(t *testing.T) {
	m := &mockMutator{}
	rec := &callbackRecorder{}
	f := loginFeature()
	s := newTestSession(t, f, m, rec)

	second := s.Snapshot().Buffer.Steps[1].LocalID
	require.True(t, s.UpdateStep(second, "type creds"))

	snap := s.Snapshot()
	require.True(t, snap.Dirty)
	require.True(t, snap.CanSubmit)

	require.NoError(t, s.Submit(context.Background()))

	require.Equal(t, 1, m.callCount())
	call := m.calls[0]
	assert.Equal(t, "project-1", call.scope)
	assert.Equal(t, f.ID, call.featureID)
	assert.Equal(t, []string{"click", "type creds", "submit"}, call.update.Steps)
	require.NotNil(t, call.update.Priority)
	assert.Equal(t, 2, *call.update.Priority)

	assert.Equal(t, StateDone, s.State())
	assert.Equal(t, 1, rec.saved)
	assert.Equal(t, 1, rec.closed)
	assert.Equal(t, "type creds", rec.last.Steps[1])

	saved, ok := s.Saved()
	require.True(t, ok)
	assert.Equal(t, f.ID, saved.ID)
}

func TestSessionAddedBlankStepIsNotAChange(t *testing.T) {
	m := &mockMutator{}
	s := newTestSession(t, loginFeature(), m, &callbackRecorder{})

	id := s.AddStep()
	require.NotEmpty(t, id)

	snap := s.Snapshot()
	assert.Len(t, snap.Buffer.Steps, 4)
	assert.False(t, snap.Dirty)
	assert.ErrorIs(t, s.Submit(context.Background()), ErrSubmitNotAllowed)
	assert.Zero(t, m.callCount())
}

func TestSessionAddedBlankStepDroppedFromPayload(t *testing.T) {
	m := &mockMutator{}
	s := newTestSession(t, loginFeature(), m, &callbackRecorder{})

	s.AddStep()
	s.SetName("Login form v2")
	require.NoError(t, s.Submit(context.Background()))

	require.Equal(t, 1, m.callCount())
	assert.Equal(t, []string{"click", "type", "submit"}, m.calls[0].update.Steps)
}

func TestSessionMalformedPrioritySubmitsNullPriority(t *testing.T) {
	m := &mockMutator{}
	s := newTestSession(t, loginFeature(), m, &callbackRecorder{})

	s.SetPriorityText("abc")
	snap := s.Snapshot()
	assert.True(t, snap.Dirty)
	assert.True(t, snap.Validity.Valid)
	assert.False(t, snap.Validity.PriorityOK)
	require.True(t, snap.CanSubmit)

	require.NoError(t, s.Submit(context.Background()))
	assert.Nil(t, m.calls[0].update.Priority)
}

func TestSessionMutationFailureThenDismiss(t *testing.T) {
	m := &mockMutator{err: errors.New("network error")}
	rec := &callbackRecorder{}
	s := newTestSession(t, loginFeature(), m, rec)

	s.SetDescription("new desc")
	before := s.Snapshot().Buffer

	err := s.Submit(context.Background())
	require.EqualError(t, err, "network error")

	snap := s.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, "network error", snap.ErrorMessage)
	assert.Equal(t, before, snap.Buffer)
	assert.Zero(t, rec.saved)
	assert.Zero(t, rec.closed)

	require.True(t, s.DismissError())
	snap = s.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.ErrorMessage)
	assert.Equal(t, before, snap.Buffer)
	assert.True(t, snap.CanSubmit)
}

func TestSessionRetryFromErrorState(t *testing.T) {
	m := &mockMutator{err: errors.New("boom")}
	rec := &callbackRecorder{}
	s := newTestSession(t, loginFeature(), m, rec)
	s.SetName("renamed")

	require.Error(t, s.Submit(context.Background()))
	require.Equal(t, StateError, s.State())

	m.mu.Lock()
	m.err = nil
	m.mu.Unlock()

	require.NoError(t, s.Submit(context.Background()))
	assert.Equal(t, StateDone, s.State())
	assert.Empty(t, s.Snapshot().ErrorMessage)
	assert.Equal(t, 2, m.callCount())
	assert.Equal(t, 1, rec.saved)
}

type blankError struct{}

func (blankError) Error() string { return "  " }

func TestSessionFallbackErrorMessage(t *testing.T) {
	m := &mockMutator{err: blankError{}}
	s := newTestSession(t, loginFeature(), m, &callbackRecorder{})
	s.SetName("renamed")

	require.Error(t, s.Submit(context.Background()))
	assert.Equal(t, FallbackErrorMessage, s.Snapshot().ErrorMessage)
}

func TestSessionRejectsSecondSubmitWhileInFlight(t *testing.T) {
	m := &mockMutator{block: make(chan struct{})}
	rec := &callbackRecorder{}
	s := newTestSession(t, loginFeature(), m, rec)
	s.SetName("renamed")

	sub, err := s.BeginSubmit()
	require.NoError(t, err)
	assert.Equal(t, StateSubmitting, s.State())

	_, err = s.BeginSubmit()
	assert.ErrorIs(t, err, ErrSubmitNotAllowed)
	assert.False(t, s.Snapshot().CanSubmit)

	assert.True(t, s.SetCategory("Backend"), "fields stay editable while submitting")
	assert.False(t, s.Cancel(), "cancel is ignored while submitting")

	done := make(chan Result, 1)
	go func() { done <- sub.Execute(context.Background()) }()
	close(m.block)
	require.NoError(t, s.Complete(<-done))

	assert.Equal(t, 1, m.callCount())
	assert.Equal(t, StateDone, s.State())
	assert.Equal(t, "UI", m.calls[0].update.Category, "payload is captured when the submission begins")
}

func TestSessionCompleteWithoutSubmission(t *testing.T) {
	s := newTestSession(t, loginFeature(), &mockMutator{}, &callbackRecorder{})
	assert.ErrorIs(t, s.Complete(Result{}), ErrNotSubmitting)
}

func TestSessionInvalidBufferBlocksSubmit(t *testing.T) {
	m := &mockMutator{}
	s := newTestSession(t, loginFeature(), m, &callbackRecorder{})

	s.SetCategory("   ")
	s.SetName("changed")

	snap := s.Snapshot()
	assert.True(t, snap.Dirty)
	assert.False(t, snap.Validity.Valid)
	assert.ErrorIs(t, s.Submit(context.Background()), ErrSubmitNotAllowed)
	assert.Zero(t, m.callCount())
	assert.Equal(t, StateIdle, s.State())
}

func TestSessionCancel(t *testing.T) {
	m := &mockMutator{}
	rec := &callbackRecorder{}
	s := newTestSession(t, loginFeature(), m, rec)
	s.SetName("unsaved")

	require.True(t, s.Cancel())
	assert.False(t, s.Cancel(), "second cancel is ignored")

	snap := s.Snapshot()
	assert.Equal(t, StateDone, snap.State)
	assert.True(t, snap.Canceled)
	assert.Equal(t, 1, rec.closed)
	assert.Zero(t, rec.saved)
	assert.Zero(t, m.callCount())

	assert.False(t, s.SetName("after close"))
	assert.Empty(t, s.AddStep())
}

func TestSessionCancelFromErrorState(t *testing.T) {
	m := &mockMutator{err: errors.New("nope")}
	rec := &callbackRecorder{}
	s := newTestSession(t, loginFeature(), m, rec)
	s.SetName("renamed")
	require.Error(t, s.Submit(context.Background()))

	require.True(t, s.Cancel())
	assert.Equal(t, 1, rec.closed)
	assert.Empty(t, s.Snapshot().ErrorMessage)
}

func TestSessionStepOperations(t *testing.T) {
	f := loginFeature()
	f.Steps = nil
	s := newTestSession(t, f, &mockMutator{}, &callbackRecorder{})

	steps := s.Snapshot().Buffer.Steps
	require.Len(t, steps, 1)
	assert.False(t, s.RemoveStep(steps[0].LocalID))

	added := s.AddStep()
	assert.Equal(t, "t-2", added)
	require.True(t, s.UpdateStep(added, "second"))
	require.True(t, s.MoveStep(added, -1))

	got := s.Snapshot().Buffer.Steps
	assert.Equal(t, []string{"t-2", "t-1"}, ids(got))
	assert.Equal(t, []string{"second"}, NormalizeSteps(got))
}

func TestSessionDoesNotMutateOriginal(t *testing.T) {
	f := loginFeature()
	s := newTestSession(t, f, &mockMutator{}, &callbackRecorder{})

	s.UpdateStep(s.Snapshot().Buffer.Steps[0].LocalID, "changed")
	assert.Equal(t, "click", f.Steps[0])
	assert.Equal(t, "click", s.Original().Steps[0])
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "submitting", StateSubmitting.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestNewSessionRequiresMutator(t *testing.T) {
	assert.Panics(t, func() {
		NewSession(loginFeature(), "p", nil, Callbacks{})
	})
}

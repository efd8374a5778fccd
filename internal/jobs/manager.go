package jobs

import (
	"errors"
	"fmt"
	"sync"

	"pipeline-console/internal/domain"
)

// ErrRunInProgress is returned when the trigger is activated while a run is outstanding.
var ErrRunInProgress = errors.New("run already in progress")

// ErrNoActiveRun is returned when cancel is requested for idle state.
var ErrNoActiveRun = errors.New("no active run")

// Manager is the trigger guard: it tracks the single allowed active run.
// The trigger is enabled exactly when no run is in an active stage.
type Manager struct {
	mu      sync.RWMutex
	current domain.Run
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Run{
			Status: domain.RunStatusIdle,
		},
	}
}

// Start disables the trigger and moves a new run to detecting state.
func (m *Manager) Start(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isActive(m.current.Status) {
		return ErrRunInProgress
	}

	m.current = domain.Run{
		ID:     runID,
		Status: domain.RunStatusDetecting,
	}
	return nil
}

// Acquire starts runID and returns the matching release. Release moves the
// run to the given terminal status, or failed when it is still active, and
// is safe to call more than once.
func (m *Manager) Acquire(runID string) (release func(final domain.RunStatus), err error) {
	if err := m.Start(runID); err != nil {
		return nil, err
	}

	var once sync.Once
	return func(final domain.RunStatus) {
		once.Do(func() { m.finish(runID, final) })
	}, nil
}

// finish forces the run into a terminal state so the trigger re-enables.
func (m *Manager) finish(runID string, final domain.RunStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID != runID || !isActive(m.current.Status) {
		return
	}
	if !isTerminal(final) {
		final = domain.RunStatusFailed
	}
	m.current.Status = final
}

// Transition validates and applies state transitions for the current run.
func (m *Manager) Transition(status domain.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" && status != domain.RunStatusIdle {
		return fmt.Errorf("cannot transition without an active run")
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	m.current.Status = status
	return nil
}

// Current returns a snapshot of the current run.
func (m *Manager) Current() domain.Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears run metadata and returns manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Run{Status: domain.RunStatusIdle}
}

// IsActive reports whether the current state is an active stage.
func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isActive(m.current.Status)
}

// TriggerEnabled reports whether a new run may start.
func (m *Manager) TriggerEnabled() bool {
	return !m.IsActive()
}

// Cancel moves an active run to cancelled state.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !isActive(m.current.Status) {
		return ErrNoActiveRun
	}
	m.current.Status = domain.RunStatusCancelled
	return nil
}

// isActive checks if a status represents an outstanding call sequence.
func isActive(status domain.RunStatus) bool {
	switch status {
	case domain.RunStatusDetecting, domain.RunStatusRunningModel, domain.RunStatusRunningPipeline:
		return true
	default:
		return false
	}
}

func isTerminal(status domain.RunStatus) bool {
	switch status {
	case domain.RunStatusDone, domain.RunStatusFailed, domain.RunStatusCancelled:
		return true
	default:
		return false
	}
}

// isValidTransition enforces the allowed run state machine edges.
func isValidTransition(from, to domain.RunStatus) bool {
	switch from {
	case domain.RunStatusIdle:
		return to == domain.RunStatusDetecting
	case domain.RunStatusDetecting:
		return to == domain.RunStatusRunningModel || to == domain.RunStatusFailed || to == domain.RunStatusCancelled
	case domain.RunStatusRunningModel:
		return to == domain.RunStatusRunningPipeline || to == domain.RunStatusDone || to == domain.RunStatusFailed || to == domain.RunStatusCancelled
	case domain.RunStatusRunningPipeline:
		return to == domain.RunStatusDone || to == domain.RunStatusFailed || to == domain.RunStatusCancelled
	case domain.RunStatusDone, domain.RunStatusFailed, domain.RunStatusCancelled:
		return to == domain.RunStatusDetecting || to == domain.RunStatusIdle
	default:
		return false
	}
}

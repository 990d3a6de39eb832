package app

import (
	"time"

	"quiz-session-engine/internal/domain"
)

// stateMachine owns the lifecycle transitions of one session.
// Callers hold the session lock and have already authorized the host.
type stateMachine struct {
	session *domain.Session
	now     func() time.Time
}

func newStateMachine(session *domain.Session, now func() time.Time) *stateMachine {
	return &stateMachine{session: session, now: now}
}

func (m *stateMachine) Status() domain.SessionStatus {
	return m.session.Status
}

// OpenLobby moves a drafted session into the waiting lobby.
func (m *stateMachine) OpenLobby() error {
	return m.transition(domain.StatusWaiting, domain.StatusDraft)
}

func (m *stateMachine) Start() error {
	if err := m.transition(domain.StatusInProgress, domain.StatusDraft, domain.StatusWaiting); err != nil {
		return err
	}
	started := m.session.UpdatedAt
	m.session.ActualStartTime = &started
	return nil
}

func (m *stateMachine) Pause() error {
	return m.transition(domain.StatusPaused, domain.StatusInProgress)
}

func (m *stateMachine) Resume() error {
	return m.transition(domain.StatusInProgress, domain.StatusPaused)
}

// End completes the session from any non-terminal state.
func (m *stateMachine) End() error {
	return m.finish(domain.StatusCompleted)
}

// Cancel abandons the session from any non-terminal state.
func (m *stateMachine) Cancel() error {
	return m.finish(domain.StatusCancelled)
}

func (m *stateMachine) finish(to domain.SessionStatus) error {
	if m.session.Status.Terminal() {
		return domain.ErrInvalidTransition
	}
	now := m.now()
	m.session.Status = to
	m.session.EndTime = &now
	m.session.UpdatedAt = now
	return nil
}

func (m *stateMachine) transition(to domain.SessionStatus, from ...domain.SessionStatus) error {
	for _, allowed := range from {
		if m.session.Status == allowed {
			m.session.Status = to
			m.session.UpdatedAt = m.now()
			return nil
		}
	}
	return domain.ErrInvalidTransition
}

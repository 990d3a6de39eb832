package app

import (
	"errors"
	"testing"
	"time"

	"quiz-session-engine/internal/domain"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func TestStateMachineTransitions(t *testing.T) {
	type step struct {
		name string
		do   func(*stateMachine) error
		want domain.SessionStatus
		err  error
	}
	open := func(m *stateMachine) error { return m.OpenLobby() }
	start := func(m *stateMachine) error { return m.Start() }
	pause := func(m *stateMachine) error { return m.Pause() }
	resume := func(m *stateMachine) error { return m.Resume() }
	end := func(m *stateMachine) error { return m.End() }
	cancel := func(m *stateMachine) error { return m.Cancel() }

	cases := []struct {
		name  string
		steps []step
	}{
		{"happy path", []step{
			{"open", open, domain.StatusWaiting, nil},
			{"pause before start", pause, domain.StatusWaiting, domain.ErrInvalidTransition},
			{"start", start, domain.StatusInProgress, nil},
			{"pause", pause, domain.StatusPaused, nil},
			{"resume", resume, domain.StatusInProgress, nil},
			{"end", end, domain.StatusCompleted, nil},
			{"end again", end, domain.StatusCompleted, domain.ErrInvalidTransition},
			{"cancel completed", cancel, domain.StatusCompleted, domain.ErrInvalidTransition},
		}},
		{"start from draft", []step{
			{"start", start, domain.StatusInProgress, nil},
			{"start again", start, domain.StatusInProgress, domain.ErrInvalidTransition},
			{"resume running", resume, domain.StatusInProgress, domain.ErrInvalidTransition},
		}},
		{"cancel from draft", []step{
			{"cancel", cancel, domain.StatusCancelled, nil},
			{"open cancelled", open, domain.StatusCancelled, domain.ErrInvalidTransition},
		}},
		{"end while paused", []step{
			{"start", start, domain.StatusInProgress, nil},
			{"pause", pause, domain.StatusPaused, nil},
			{"end", end, domain.StatusCompleted, nil},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newStateMachine(&domain.Session{Status: domain.StatusDraft}, fixedClock())
			for _, s := range tc.steps {
				err := s.do(m)
				if !errors.Is(err, s.err) {
					t.Fatalf("%s: expected error %v, got %v", s.name, s.err, err)
				}
				if m.Status() != s.want {
					t.Fatalf("%s: expected %s, got %s", s.name, s.want, m.Status())
				}
			}
		})
	}
}

func TestStateMachineStampsTimes(t *testing.T) {
	session := &domain.Session{Status: domain.StatusWaiting}
	m := newStateMachine(session, fixedClock())
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.ActualStartTime == nil || !session.ActualStartTime.Equal(session.UpdatedAt) {
		t.Fatalf("expected actual start time stamped")
	}
	if err := m.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if session.EndTime == nil {
		t.Fatalf("expected end time stamped")
	}
}

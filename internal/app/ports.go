package app

import (
	"context"

	"quiz-session-engine/internal/domain"
)

// Store abstracts how sessions and their children are persisted (in-memory, Postgres, etc).
// Each write either fully applies or fails. Lookups of unknown ids return the matching
// domain NotFound error.
type Store interface {
	// CreateSession stores a session together with its question instances.
	// It returns domain.ErrJoinCodeTaken if the join code is already used.
	CreateSession(ctx context.Context, session *domain.Session, questions []*domain.QuestionInstance) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	GetSessionByCode(ctx context.Context, code string) (*domain.Session, error)
	ListSessionsByHost(ctx context.Context, hostID string) ([]*domain.Session, error)
	UpdateSession(ctx context.Context, session *domain.Session) error
	// DeleteSession is a soft delete; the session stops resolving but its rows remain.
	DeleteSession(ctx context.Context, id string) error

	ListQuestionInstances(ctx context.Context, sessionID string) ([]*domain.QuestionInstance, error)
	GetQuestionInstance(ctx context.Context, id string) (*domain.QuestionInstance, error)
	UpdateQuestionInstances(ctx context.Context, questions ...*domain.QuestionInstance) error

	CreateParticipant(ctx context.Context, participant *domain.Participant) error
	GetParticipant(ctx context.Context, id string) (*domain.Participant, error)
	ListParticipants(ctx context.Context, sessionID string) ([]*domain.Participant, error)
	UpdateParticipants(ctx context.Context, participants ...*domain.Participant) error

	// CreateResponse returns domain.ErrAlreadySubmitted if the participant already
	// answered the question instance.
	CreateResponse(ctx context.Context, response *domain.Response) error
	ListResponses(ctx context.Context, questionInstanceID string) ([]*domain.Response, error)
}

// BankSource loads a read-only snapshot of a question bank (ordered, active questions only).
type BankSource interface {
	GetBank(ctx context.Context, bankID string) (domain.QuestionBank, error)
}

// CodeRegistry claims join codes across sessions. Claim reports false when the code is
// already held by another session. Release frees a code only while sessionID holds it.
type CodeRegistry interface {
	Claim(ctx context.Context, code, sessionID string) (bool, error)
	Release(ctx context.Context, code, sessionID string) error
}

// Identity resolves the actor behind the current call.
type Identity interface {
	CurrentActor(ctx context.Context) (string, bool)
}

// Broadcaster pushes events to a session's observers. Implementations must not block.
type Broadcaster interface {
	Broadcast(ctx context.Context, sessionID string, event domain.Event)
	// BroadcastOthers delivers to every observer except excludeObserverID.
	BroadcastOthers(ctx context.Context, sessionID, excludeObserverID string, event domain.Event)
}

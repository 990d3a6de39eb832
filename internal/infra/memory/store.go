package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-session-engine/internal/domain"
)

// Store is an in-memory implementation of app.Store. Entities are copied on the way
// in and out so callers never share state with the store.
type Store struct {
	mu           sync.RWMutex
	sessions     map[string]*domain.Session
	deleted      map[string]struct{}
	codes        map[string]string
	questions    map[string]*domain.QuestionInstance
	participants map[string]*domain.Participant
	responses    map[string]*domain.Response
	answered     map[string]string // questionInstanceID/participantID -> response id
}

func NewStore() *Store {
	return &Store{
		sessions:     make(map[string]*domain.Session),
		deleted:      make(map[string]struct{}),
		codes:        make(map[string]string),
		questions:    make(map[string]*domain.QuestionInstance),
		participants: make(map[string]*domain.Participant),
		responses:    make(map[string]*domain.Response),
		answered:     make(map[string]string),
	}
}

func (s *Store) CreateSession(_ context.Context, session *domain.Session, questions []*domain.QuestionInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[session.Code]; taken {
		return domain.ErrJoinCodeTaken
	}
	s.sessions[session.ID] = session.Clone()
	s.codes[session.Code] = session.ID
	for _, qi := range questions {
		s.questions[qi.ID] = qi.Clone()
	}
	return nil
}

func (s *Store) liveSession(id string) (*domain.Session, bool) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if _, gone := s.deleted[id]; gone {
		return nil, false
	}
	return session, true
}

func (s *Store) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.liveSession(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Store) GetSessionByCode(_ context.Context, code string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.liveSession(s.codes[code])
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *Store) ListSessionsByHost(_ context.Context, hostID string) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Session
	for id, session := range s.sessions {
		if _, gone := s.deleted[id]; gone || session.HostID != hostID {
			continue
		}
		out = append(out, session.Clone())
	}
	return out, nil
}

func (s *Store) UpdateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liveSession(session.ID); !ok {
		return domain.ErrSessionNotFound
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

// DeleteSession hides the session from lookups. The code stays reserved.
func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liveSession(id); !ok {
		return domain.ErrSessionNotFound
	}
	s.deleted[id] = struct{}{}
	return nil
}

func (s *Store) ListQuestionInstances(_ context.Context, sessionID string) ([]*domain.QuestionInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.QuestionInstance
	for _, qi := range s.questions {
		if qi.SessionID == sessionID {
			out = append(out, qi.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QueueOrder < out[j].QueueOrder })
	return out, nil
}

func (s *Store) GetQuestionInstance(_ context.Context, id string) (*domain.QuestionInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	qi, ok := s.questions[id]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	return qi.Clone(), nil
}

// UpdateQuestionInstances applies all updates or none.
func (s *Store) UpdateQuestionInstances(_ context.Context, questions ...*domain.QuestionInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, qi := range questions {
		if _, ok := s.questions[qi.ID]; !ok {
			return domain.ErrQuestionNotFound
		}
	}
	for _, qi := range questions {
		s.questions[qi.ID] = qi.Clone()
	}
	return nil
}

func (s *Store) CreateParticipant(_ context.Context, participant *domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.liveSession(participant.SessionID); !ok {
		return domain.ErrSessionNotFound
	}
	if participant.ActorID != "" {
		for _, p := range s.participants {
			if p.SessionID == participant.SessionID && p.ActorID == participant.ActorID {
				return domain.ErrAlreadyJoined
			}
		}
	}
	s.participants[participant.ID] = participant.Clone()
	return nil
}

func (s *Store) GetParticipant(_ context.Context, id string) (*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	return p.Clone(), nil
}

func (s *Store) ListParticipants(_ context.Context, sessionID string) ([]*domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Participant
	for _, p := range s.participants {
		if p.SessionID == sessionID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

// UpdateParticipants applies all updates or none.
func (s *Store) UpdateParticipants(_ context.Context, participants ...*domain.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range participants {
		if _, ok := s.participants[p.ID]; !ok {
			return domain.ErrParticipantNotFound
		}
	}
	for _, p := range participants {
		s.participants[p.ID] = p.Clone()
	}
	return nil
}

func (s *Store) CreateResponse(_ context.Context, response *domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := response.QuestionInstanceID + "/" + response.ParticipantID
	if _, dup := s.answered[key]; dup {
		return domain.ErrAlreadySubmitted
	}
	s.answered[key] = response.ID
	s.responses[response.ID] = response.Clone()
	return nil
}

func (s *Store) ListResponses(_ context.Context, questionInstanceID string) ([]*domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Response
	for _, r := range s.responses {
		if r.QuestionInstanceID == questionInstanceID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

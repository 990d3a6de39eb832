package app

import (
	"strings"
	"time"

	"quiz-session-engine/internal/domain"
)

// participantRegistry owns join/leave for one session and keeps the session's
// live participant counter in step with the active flags.
type participantRegistry struct {
	session      *domain.Session
	participants map[string]*domain.Participant
	now          func() time.Time
	newID        func() string
}

func newParticipantRegistry(session *domain.Session, participants []*domain.Participant, now func() time.Time, newID func() string) *participantRegistry {
	r := &participantRegistry{
		session:      session,
		participants: make(map[string]*domain.Participant, len(participants)),
		now:          now,
		newID:        newID,
	}
	for _, p := range participants {
		r.participants[p.ID] = p
	}
	return r
}

func (r *participantRegistry) Get(id string) (*domain.Participant, bool) {
	p, ok := r.participants[id]
	return p, ok
}

func (r *participantRegistry) All() []*domain.Participant {
	all := make([]*domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		all = append(all, p)
	}
	return all
}

func (r *participantRegistry) activeCount() int {
	n := 0
	for _, p := range r.participants {
		if p.IsActive {
			n++
		}
	}
	return n
}

// Join admits a participant. actorID is empty for guests. A returning non-guest actor
// whose earlier row is inactive gets that row back rather than a second one; the bool
// result is true only when a new row was created.
func (r *participantRegistry) Join(displayName, actorID, deviceInfo string) (*domain.Participant, bool, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, false, domain.Invalid("display name is required")
	}
	switch r.session.Status {
	case domain.StatusWaiting, domain.StatusInProgress:
	default:
		return nil, false, domain.ErrNotJoinable
	}
	if r.session.Status == domain.StatusInProgress && !r.session.Settings.AllowLateJoin {
		return nil, false, domain.ErrLateJoinDisabled
	}

	var returning *domain.Participant
	if actorID != "" {
		for _, p := range r.participants {
			if p.ActorID != actorID {
				continue
			}
			if p.IsActive {
				return nil, false, domain.ErrAlreadyJoined
			}
			returning = p
		}
	}

	if capacity := r.session.Settings.MaxParticipants; capacity > 0 && r.activeCount() >= capacity {
		return nil, false, domain.ErrSessionFull
	}

	now := r.now()
	if returning != nil {
		returning.DisplayName = displayName
		returning.DeviceInfo = deviceInfo
		returning.IsActive = true
		returning.LeftAt = nil
		r.session.TotalParticipants = r.activeCount()
		return returning, false, nil
	}

	p := &domain.Participant{
		ID:          r.newID(),
		SessionID:   r.session.ID,
		ActorID:     actorID,
		DisplayName: displayName,
		IsGuest:     actorID == "",
		DeviceInfo:  deviceInfo,
		JoinedAt:    now,
		IsActive:    true,
	}
	r.participants[p.ID] = p
	r.session.TotalParticipants = r.activeCount()
	return p, true, nil
}

// Leave marks the participant inactive. The second return is false when the
// participant had already left.
func (r *participantRegistry) Leave(id string) (*domain.Participant, bool, error) {
	p, ok := r.participants[id]
	if !ok {
		return nil, false, domain.ErrParticipantNotFound
	}
	if !p.IsActive {
		return p, false, nil
	}
	now := r.now()
	p.IsActive = false
	p.LeftAt = &now
	r.session.TotalParticipants = r.activeCount()
	return p, true, nil
}

// LeaveAll marks every active participant as left and returns them.
func (r *participantRegistry) LeaveAll() []*domain.Participant {
	now := r.now()
	var left []*domain.Participant
	for _, p := range r.participants {
		if p.IsActive {
			p.IsActive = false
			leftAt := now
			p.LeftAt = &leftAt
			left = append(left, p)
		}
	}
	r.session.TotalParticipants = 0
	return left
}

// Rerank recomputes ranks over active participants and returns those whose rank changed.
// Inactive participants keep their last rank.
func (r *participantRegistry) Rerank() ([]*domain.Participant, []*domain.Participant) {
	ranked := RankParticipants(r.All())
	var changed []*domain.Participant
	for i, p := range ranked {
		if p.Rank != i+1 {
			p.Rank = i + 1
			changed = append(changed, p)
		}
	}
	return ranked, changed
}

func (r *participantRegistry) Leaderboard(limit int, currentActor string) []domain.LeaderboardEntry {
	return LeaderboardEntries(RankParticipants(r.All()), limit, currentActor)
}

// RankOf returns the 1-based rank of an active participant, or 0 if inactive.
func (r *participantRegistry) RankOf(id string) (int, error) {
	if _, ok := r.participants[id]; !ok {
		return 0, domain.ErrParticipantNotFound
	}
	for i, p := range RankParticipants(r.All()) {
		if p.ID == id {
			return i + 1, nil
		}
	}
	return 0, nil
}

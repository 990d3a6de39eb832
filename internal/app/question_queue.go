package app

import (
	"sort"
	"time"

	"quiz-session-engine/internal/domain"
)

const (
	minTimeExtension = 1
	maxTimeExtension = 120
)

// questionQueue owns the ordered question instances of one session and the
// single active pointer. The order is fixed when the session is created.
type questionQueue struct {
	instances []*domain.QuestionInstance
	now       func() time.Time
}

func newQuestionQueue(instances []*domain.QuestionInstance, now func() time.Time) *questionQueue {
	sorted := make([]*domain.QuestionInstance, len(instances))
	copy(sorted, instances)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].QueueOrder < sorted[j].QueueOrder })
	return &questionQueue{instances: sorted, now: now}
}

func (q *questionQueue) Len() int {
	return len(q.instances)
}

// Active returns the active instance, or nil.
func (q *questionQueue) Active() *domain.QuestionInstance {
	for _, qi := range q.instances {
		if qi.Status == domain.QuestionActive {
			return qi
		}
	}
	return nil
}

func (q *questionQueue) Find(id string) *domain.QuestionInstance {
	for _, qi := range q.instances {
		if qi.ID == id {
			return qi
		}
	}
	return nil
}

// ActivateNext completes the active instance, if any, and activates the lowest-ordered
// queued one. It returns every instance it changed, activated last. When the queue is
// drained it still completes the active instance and returns ErrNoMoreQuestions.
func (q *questionQueue) ActivateNext() ([]*domain.QuestionInstance, error) {
	now := q.now()
	var changed []*domain.QuestionInstance
	if active := q.Active(); active != nil {
		active.Status = domain.QuestionCompleted
		active.EndedAt = &now
		changed = append(changed, active)
	}
	for _, qi := range q.instances {
		if qi.Status == domain.QuestionQueued {
			qi.Status = domain.QuestionActive
			started := now
			qi.StartedAt = &started
			return append(changed, qi), nil
		}
	}
	return changed, domain.ErrNoMoreQuestions
}

// SkipActive marks the active instance skipped. It does not activate the next one.
func (q *questionQueue) SkipActive() (*domain.QuestionInstance, error) {
	active := q.Active()
	if active == nil {
		return nil, domain.ErrNoActiveQuestion
	}
	now := q.now()
	active.Status = domain.QuestionSkipped
	active.EndedAt = &now
	return active, nil
}

// CompleteActive closes the active instance when the session finishes.
func (q *questionQueue) CompleteActive() *domain.QuestionInstance {
	active := q.Active()
	if active == nil {
		return nil
	}
	now := q.now()
	active.Status = domain.QuestionCompleted
	active.EndedAt = &now
	return active
}

// ExtendActiveTime adds extraSeconds to the effective time limit of the active instance.
func (q *questionQueue) ExtendActiveTime(id string, extraSeconds int) (*domain.QuestionInstance, error) {
	if extraSeconds < minTimeExtension || extraSeconds > maxTimeExtension {
		return nil, domain.ErrInvalidTimeExtension
	}
	qi := q.Find(id)
	if qi == nil {
		return nil, domain.ErrQuestionNotFound
	}
	if qi.Status != domain.QuestionActive {
		return nil, domain.ErrQuestionNotActive
	}
	limit := qi.TimeLimit() + extraSeconds
	qi.TimeLimitOverride = &limit
	qi.TimeLimitExtensions++
	return qi, nil
}

package app

import (
	"context"
	"errors"
	"time"

	"quiz-session-engine/internal/domain"
)

// responseCoordinator runs one submission through validate, score, persist and
// stat update for its session. It relies on the caller holding the session lock, which
// makes the duplicate check and the insert a single step.
type responseCoordinator struct {
	session  *domain.Session
	queue    *questionQueue
	registry *participantRegistry
	store    Store
	now      func() time.Time
	newID    func() string

	// answered holds participant ids that already responded to answeredFor.
	answered    map[string]struct{}
	answeredFor string
}

func (c *responseCoordinator) markAnswered(questionID, participantID string) {
	if c.answeredFor != questionID {
		c.answeredFor = questionID
		c.answered = make(map[string]struct{})
	}
	c.answered[participantID] = struct{}{}
}

func (c *responseCoordinator) hasAnswered(questionID, participantID string) bool {
	if c.answeredFor != questionID {
		return false
	}
	_, ok := c.answered[participantID]
	return ok
}

// submission is the coordinator's result: what the caller returns and what it broadcasts.
type submission struct {
	result      domain.SubmitResult
	response    *domain.Response
	participant *domain.Participant
	question    *domain.QuestionInstance
}

// Submit validates and scores a submission and stores the response. A non-nil
// submission with a non-nil error means the response is durable but the follow-up
// stat writes failed.
func (c *responseCoordinator) Submit(ctx context.Context, participantID, questionID string, in domain.Submission) (*submission, error) {
	p, ok := c.registry.Get(participantID)
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	if !p.IsActive {
		return nil, domain.ErrParticipantInactive
	}
	qi := c.queue.Find(questionID)
	if qi == nil {
		// Unknown here: either it does not exist or it belongs to another session.
		if _, err := c.store.GetQuestionInstance(ctx, questionID); err != nil {
			return nil, err
		}
		return nil, domain.ErrQuestionMismatch
	}
	if qi.Status != domain.QuestionActive {
		return nil, domain.ErrQuestionNotActive
	}
	if c.session.Status != domain.StatusInProgress {
		return nil, domain.ErrSessionNotRunning
	}
	if c.hasAnswered(qi.ID, p.ID) {
		return nil, domain.ErrAlreadySubmitted
	}
	if in.ResponseTimeSeconds < 0 {
		return nil, domain.Invalid("response time cannot be negative")
	}
	if !c.session.Settings.EnableHints {
		in.UsedHint = false
	}

	verdict, points, err := Score(ScoreInput{
		Question:          qi.Question,
		Submission:        in,
		BasePoints:        qi.Points(),
		TimeLimitSeconds:  qi.TimeLimit(),
		SpeedBonusEnabled: c.session.Settings.PointsForSpeed,
	})
	if err != nil {
		return nil, err
	}

	now := c.now()
	response := &domain.Response{
		ID:                  c.newID(),
		SessionID:           c.session.ID,
		QuestionInstanceID:  qi.ID,
		ParticipantID:       p.ID,
		OptionID:            in.OptionID,
		Text:                in.Text,
		Location:            in.Location,
		Correct:             verdict.Correct,
		PointsEarned:        points,
		ResponseTimeSeconds: in.ResponseTimeSeconds,
		UsedHint:            in.UsedHint,
		DistanceErrorMeters: verdict.DistanceMeters,
		SubmittedAt:         now,
	}
	if err := c.store.CreateResponse(ctx, response); err != nil {
		if errors.Is(err, domain.ErrAlreadySubmitted) {
			c.markAnswered(qi.ID, p.ID)
			return nil, domain.ErrAlreadySubmitted
		}
		return nil, err
	}
	c.markAnswered(qi.ID, p.ID)

	qi.TotalResponses++
	if verdict.Correct {
		qi.CorrectResponses++
	}
	p.TotalAnswered++
	if verdict.Correct {
		p.TotalCorrect++
	}
	p.TotalScore += points
	p.AverageResponseTime += (in.ResponseTimeSeconds - p.AverageResponseTime) / float64(p.TotalAnswered)
	c.session.TotalResponses++
	c.session.UpdatedAt = now
	_, reranked := c.registry.Rerank()

	out := &submission{
		result: domain.SubmitResult{
			ResponseID:          response.ID,
			Correct:             verdict.Correct,
			PointsEarned:        points,
			TotalScore:          p.TotalScore,
			Rank:                p.Rank,
			DistanceErrorMeters: verdict.DistanceMeters,
			SubmittedAt:         now,
		},
		response:    response,
		participant: p,
		question:    qi,
	}
	if c.session.Settings.ShowCorrectAnswers {
		out.result.Explanation = qi.Question.Explanation
	}

	if err := c.store.UpdateQuestionInstances(ctx, qi); err != nil {
		return out, err
	}
	if err := c.store.UpdateParticipants(ctx, withParticipant(reranked, p)...); err != nil {
		return out, err
	}
	if err := c.store.UpdateSession(ctx, c.session); err != nil {
		return out, err
	}
	return out, nil
}

func withParticipant(list []*domain.Participant, p *domain.Participant) []*domain.Participant {
	for _, existing := range list {
		if existing.ID == p.ID {
			return list
		}
	}
	return append(list, p)
}

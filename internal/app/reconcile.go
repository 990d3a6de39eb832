package app

import (
	"context"
	"sort"

	"quiz-session-engine/internal/domain"
)

// reconcileStats rebuilds every response-derived counter from the stored responses and
// returns the entities whose values moved. Responses are replayed in submission order
// with the same running-average update Submit uses, so a consistent store yields no changes.
func reconcileStats(ctx context.Context, store Store, session *domain.Session, questions []*domain.QuestionInstance, participants []*domain.Participant) ([]*domain.QuestionInstance, []*domain.Participant, bool, error) {
	var all []*domain.Response
	var changedQuestions []*domain.QuestionInstance
	for _, qi := range questions {
		responses, err := store.ListResponses(ctx, qi.ID)
		if err != nil {
			return nil, nil, false, err
		}
		correct := 0
		for _, r := range responses {
			if r.Correct {
				correct++
			}
		}
		if qi.TotalResponses != len(responses) || qi.CorrectResponses != correct {
			qi.TotalResponses = len(responses)
			qi.CorrectResponses = correct
			changedQuestions = append(changedQuestions, qi)
		}
		all = append(all, responses...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].SubmittedAt.Before(all[j].SubmittedAt) })

	type stats struct {
		score, correct, answered int
		avg                      float64
	}
	byParticipant := make(map[string]*stats)
	for _, r := range all {
		s, ok := byParticipant[r.ParticipantID]
		if !ok {
			s = &stats{}
			byParticipant[r.ParticipantID] = s
		}
		s.answered++
		if r.Correct {
			s.correct++
		}
		s.score += r.PointsEarned
		s.avg += (r.ResponseTimeSeconds - s.avg) / float64(s.answered)
	}

	var changedParticipants []*domain.Participant
	for _, p := range participants {
		s := byParticipant[p.ID]
		if s == nil {
			s = &stats{}
		}
		if p.TotalScore == s.score && p.TotalCorrect == s.correct && p.TotalAnswered == s.answered && p.AverageResponseTime == s.avg {
			continue
		}
		p.TotalScore = s.score
		p.TotalCorrect = s.correct
		p.TotalAnswered = s.answered
		p.AverageResponseTime = s.avg
		changedParticipants = append(changedParticipants, p)
	}

	sessionChanged := session.TotalResponses != len(all)
	session.TotalResponses = len(all)
	return changedQuestions, changedParticipants, sessionChanged, nil
}

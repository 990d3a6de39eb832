package app

import (
	"sort"

	"quiz-session-engine/internal/domain"
)

// RankParticipants orders participants by score desc, then average response time asc.
// Join time and id settle the remaining ties so the order is total and repeatable.
// Inactive participants are excluded. The input is not modified.
func RankParticipants(participants []*domain.Participant) []*domain.Participant {
	ranked := make([]*domain.Participant, 0, len(participants))
	for _, p := range participants {
		if p.IsActive {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.AverageResponseTime != b.AverageResponseTime {
			return a.AverageResponseTime < b.AverageResponseTime
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.ID < b.ID
	})
	return ranked
}

// LeaderboardEntries projects an ordered slice into 1-based leaderboard rows.
// A limit <= 0 returns every row.
func LeaderboardEntries(ranked []*domain.Participant, limit int, currentActor string) []domain.LeaderboardEntry {
	n := len(ranked)
	if limit > 0 && limit < n {
		n = limit
	}
	entries := make([]domain.LeaderboardEntry, 0, n)
	for i := 0; i < n; i++ {
		p := ranked[i]
		entries = append(entries, domain.LeaderboardEntry{
			Rank:                i + 1,
			ParticipantID:       p.ID,
			DisplayName:         p.DisplayName,
			TotalScore:          p.TotalScore,
			TotalCorrect:        p.TotalCorrect,
			TotalAnswered:       p.TotalAnswered,
			AverageResponseTime: p.AverageResponseTime,
			IsCurrentActor:      currentActor != "" && p.ActorID == currentActor,
		})
	}
	return entries
}

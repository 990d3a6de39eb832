package domain

import "time"

// EventType names an event pushed to a session's observers.
type EventType string

const (
	EventQuestionActivated    EventType = "QuestionActivated"
	EventResponseSubmitted    EventType = "ResponseSubmitted"
	EventLeaderboardUpdated   EventType = "LeaderboardUpdate"
	EventSessionStatusChanged EventType = "SessionStatusChanged"
	EventParticipantJoined    EventType = "ParticipantJoined"
	EventParticipantLeft      EventType = "ParticipantLeft"
	EventTimeExtended         EventType = "TimeExtended"
	EventMapStateSynced       EventType = "MapStateSync"
)

// Event is the envelope handed to broadcast sinks.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	Payload   any       `json:"payload"`
}

type OptionView struct {
	ID   string `json:"questionOptionId"`
	Text string `json:"optionText"`
}

type QuestionActivatedPayload struct {
	QuestionInstanceID string       `json:"sessionQuestionId"`
	QuestionID         string       `json:"questionId"`
	Text               string       `json:"questionText"`
	Type               QuestionType `json:"questionType"`
	Points             int          `json:"points"`
	TimeLimit          int          `json:"timeLimit"`
	QuestionNumber     int          `json:"questionNumber"`
	TotalQuestions     int          `json:"totalQuestions"`
	Hint               string       `json:"hint,omitempty"`
	Options            []OptionView `json:"options,omitempty"`
	ActivatedAt        time.Time    `json:"activatedAt"`
}

type ResponseSubmittedPayload struct {
	QuestionInstanceID  string    `json:"sessionQuestionId"`
	ParticipantID       string    `json:"participantId"`
	DisplayName         string    `json:"displayName"`
	Correct             bool      `json:"isCorrect"`
	PointsEarned        int       `json:"pointsEarned"`
	ResponseTimeSeconds float64   `json:"responseTimeSeconds"`
	TotalResponses      int       `json:"totalResponses"`
	SubmittedAt         time.Time `json:"submittedAt"`
}

type SessionStatusChangedPayload struct {
	Status    SessionStatus `json:"status"`
	Message   string        `json:"message,omitempty"`
	ChangedAt time.Time     `json:"changedAt"`
}

type ParticipantJoinedPayload struct {
	ParticipantID     string    `json:"sessionParticipantId"`
	DisplayName       string    `json:"displayName"`
	IsGuest           bool      `json:"isGuest"`
	TotalParticipants int       `json:"totalParticipants"`
	JoinedAt          time.Time `json:"joinedAt"`
}

type ParticipantLeftPayload struct {
	ParticipantID     string    `json:"sessionParticipantId"`
	DisplayName       string    `json:"displayName"`
	TotalParticipants int       `json:"totalParticipants"`
	LeftAt            time.Time `json:"leftAt"`
}

type TimeExtendedPayload struct {
	QuestionInstanceID string    `json:"sessionQuestionId"`
	AdditionalSeconds  int       `json:"additionalSeconds"`
	NewTimeLimit       int       `json:"newTimeLimit"`
	ExtendedAt         time.Time `json:"extendedAt"`
}

type MapStateSyncedPayload struct {
	MapState
	SyncedBy string    `json:"syncedBy"`
	SyncedAt time.Time `json:"syncedAt"`
}

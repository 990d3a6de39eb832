package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"quiz-session-engine/internal/domain"
)

type sessionModel struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID                 string          `bun:"id,pk"`
	Code               string          `bun:"code"`
	Name               string          `bun:"name"`
	Description        string          `bun:"description"`
	Type               string          `bun:"type"`
	Status             string          `bun:"status"`
	HostID             string          `bun:"host_id"`
	QuestionBankID     string          `bun:"question_bank_id"`
	MapID              string          `bun:"map_id"`
	Settings           domain.Settings `bun:"settings,type:jsonb"`
	ScheduledStartTime *time.Time      `bun:"scheduled_start_time"`
	ActualStartTime    *time.Time      `bun:"actual_start_time"`
	EndTime            *time.Time      `bun:"end_time"`
	TotalParticipants  int             `bun:"total_participants"`
	TotalResponses     int             `bun:"total_responses"`
	CreatedAt          time.Time       `bun:"created_at"`
	UpdatedAt          time.Time       `bun:"updated_at"`
	DeletedAt          time.Time       `bun:"deleted_at,soft_delete,nullzero"`
}

func newSessionModel(s *domain.Session) *sessionModel {
	return &sessionModel{
		ID:                 s.ID,
		Code:               s.Code,
		Name:               s.Name,
		Description:        s.Description,
		Type:               string(s.Type),
		Status:             string(s.Status),
		HostID:             s.HostID,
		QuestionBankID:     s.QuestionBankID,
		MapID:              s.MapID,
		Settings:           s.Settings,
		ScheduledStartTime: s.ScheduledStartTime,
		ActualStartTime:    s.ActualStartTime,
		EndTime:            s.EndTime,
		TotalParticipants:  s.TotalParticipants,
		TotalResponses:     s.TotalResponses,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}

func (m *sessionModel) toDomain() *domain.Session {
	return &domain.Session{
		ID:                 m.ID,
		Code:               m.Code,
		Name:               m.Name,
		Description:        m.Description,
		Type:               domain.SessionType(m.Type),
		Status:             domain.SessionStatus(m.Status),
		HostID:             m.HostID,
		QuestionBankID:     m.QuestionBankID,
		MapID:              m.MapID,
		Settings:           m.Settings,
		ScheduledStartTime: m.ScheduledStartTime,
		ActualStartTime:    m.ActualStartTime,
		EndTime:            m.EndTime,
		TotalParticipants:  m.TotalParticipants,
		TotalResponses:     m.TotalResponses,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

type questionInstanceModel struct {
	bun.BaseModel `bun:"table:session_questions,alias:sq"`

	ID                  string          `bun:"id,pk"`
	SessionID           string          `bun:"session_id"`
	QuestionID          string          `bun:"question_id"`
	Question            domain.Question `bun:"question,type:jsonb"`
	QueueOrder          int             `bun:"queue_order"`
	Status              string          `bun:"status"`
	PointsOverride      *int            `bun:"points_override"`
	TimeLimitOverride   *int            `bun:"time_limit_override"`
	TimeLimitExtensions int             `bun:"time_limit_extensions"`
	StartedAt           *time.Time      `bun:"started_at"`
	EndedAt             *time.Time      `bun:"ended_at"`
	TotalResponses      int             `bun:"total_responses"`
	CorrectResponses    int             `bun:"correct_responses"`
}

func newQuestionInstanceModel(q *domain.QuestionInstance) *questionInstanceModel {
	return &questionInstanceModel{
		ID:                  q.ID,
		SessionID:           q.SessionID,
		QuestionID:          q.QuestionID,
		Question:            q.Question,
		QueueOrder:          q.QueueOrder,
		Status:              string(q.Status),
		PointsOverride:      q.PointsOverride,
		TimeLimitOverride:   q.TimeLimitOverride,
		TimeLimitExtensions: q.TimeLimitExtensions,
		StartedAt:           q.StartedAt,
		EndedAt:             q.EndedAt,
		TotalResponses:      q.TotalResponses,
		CorrectResponses:    q.CorrectResponses,
	}
}

func (m *questionInstanceModel) toDomain() *domain.QuestionInstance {
	return &domain.QuestionInstance{
		ID:                  m.ID,
		SessionID:           m.SessionID,
		QuestionID:          m.QuestionID,
		Question:            m.Question,
		QueueOrder:          m.QueueOrder,
		Status:              domain.QuestionStatus(m.Status),
		PointsOverride:      m.PointsOverride,
		TimeLimitOverride:   m.TimeLimitOverride,
		TimeLimitExtensions: m.TimeLimitExtensions,
		StartedAt:           m.StartedAt,
		EndedAt:             m.EndedAt,
		TotalResponses:      m.TotalResponses,
		CorrectResponses:    m.CorrectResponses,
	}
}

type participantModel struct {
	bun.BaseModel `bun:"table:session_participants,alias:sp"`

	ID                  string     `bun:"id,pk"`
	SessionID           string     `bun:"session_id"`
	ActorID             string     `bun:"actor_id"`
	DisplayName         string     `bun:"display_name"`
	IsGuest             bool       `bun:"is_guest"`
	DeviceInfo          string     `bun:"device_info"`
	JoinedAt            time.Time  `bun:"joined_at"`
	LeftAt              *time.Time `bun:"left_at"`
	IsActive            bool       `bun:"is_active"`
	TotalScore          int        `bun:"total_score"`
	TotalCorrect        int        `bun:"total_correct"`
	TotalAnswered       int        `bun:"total_answered"`
	AverageResponseTime float64    `bun:"average_response_time"`
	Rank                int        `bun:"rank"`
}

func newParticipantModel(p *domain.Participant) *participantModel {
	return &participantModel{
		ID:                  p.ID,
		SessionID:           p.SessionID,
		ActorID:             p.ActorID,
		DisplayName:         p.DisplayName,
		IsGuest:             p.IsGuest,
		DeviceInfo:          p.DeviceInfo,
		JoinedAt:            p.JoinedAt,
		LeftAt:              p.LeftAt,
		IsActive:            p.IsActive,
		TotalScore:          p.TotalScore,
		TotalCorrect:        p.TotalCorrect,
		TotalAnswered:       p.TotalAnswered,
		AverageResponseTime: p.AverageResponseTime,
		Rank:                p.Rank,
	}
}

func (m *participantModel) toDomain() *domain.Participant {
	return &domain.Participant{
		ID:                  m.ID,
		SessionID:           m.SessionID,
		ActorID:             m.ActorID,
		DisplayName:         m.DisplayName,
		IsGuest:             m.IsGuest,
		DeviceInfo:          m.DeviceInfo,
		JoinedAt:            m.JoinedAt,
		LeftAt:              m.LeftAt,
		IsActive:            m.IsActive,
		TotalScore:          m.TotalScore,
		TotalCorrect:        m.TotalCorrect,
		TotalAnswered:       m.TotalAnswered,
		AverageResponseTime: m.AverageResponseTime,
		Rank:                m.Rank,
	}
}

type responseModel struct {
	bun.BaseModel `bun:"table:session_responses,alias:sr"`

	ID                  string    `bun:"id,pk"`
	SessionID           string    `bun:"session_id"`
	QuestionInstanceID  string    `bun:"question_instance_id"`
	ParticipantID       string    `bun:"participant_id"`
	OptionID            string    `bun:"option_id"`
	Text                string    `bun:"text"`
	Latitude            *float64  `bun:"latitude"`
	Longitude           *float64  `bun:"longitude"`
	Correct             bool      `bun:"is_correct"`
	PointsEarned        int       `bun:"points_earned"`
	ResponseTimeSeconds float64   `bun:"response_time_seconds"`
	UsedHint            bool      `bun:"used_hint"`
	DistanceErrorMeters *float64  `bun:"distance_error_meters"`
	SubmittedAt         time.Time `bun:"submitted_at"`
}

func newResponseModel(r *domain.Response) *responseModel {
	m := &responseModel{
		ID:                  r.ID,
		SessionID:           r.SessionID,
		QuestionInstanceID:  r.QuestionInstanceID,
		ParticipantID:       r.ParticipantID,
		OptionID:            r.OptionID,
		Text:                r.Text,
		Correct:             r.Correct,
		PointsEarned:        r.PointsEarned,
		ResponseTimeSeconds: r.ResponseTimeSeconds,
		UsedHint:            r.UsedHint,
		DistanceErrorMeters: r.DistanceErrorMeters,
		SubmittedAt:         r.SubmittedAt,
	}
	if r.Location != nil {
		lat, lon := r.Location.Latitude, r.Location.Longitude
		m.Latitude, m.Longitude = &lat, &lon
	}
	return m
}

func (m *responseModel) toDomain() *domain.Response {
	r := &domain.Response{
		ID:                  m.ID,
		SessionID:           m.SessionID,
		QuestionInstanceID:  m.QuestionInstanceID,
		ParticipantID:       m.ParticipantID,
		OptionID:            m.OptionID,
		Text:                m.Text,
		Correct:             m.Correct,
		PointsEarned:        m.PointsEarned,
		ResponseTimeSeconds: m.ResponseTimeSeconds,
		UsedHint:            m.UsedHint,
		DistanceErrorMeters: m.DistanceErrorMeters,
		SubmittedAt:         m.SubmittedAt,
	}
	if m.Latitude != nil && m.Longitude != nil {
		r.Location = &domain.Coordinate{Latitude: *m.Latitude, Longitude: *m.Longitude}
	}
	return r
}

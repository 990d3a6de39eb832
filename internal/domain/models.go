package domain

import "time"

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusDraft      SessionStatus = "DRAFT"
	StatusWaiting    SessionStatus = "WAITING"
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusPaused     SessionStatus = "PAUSED"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusCancelled  SessionStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are possible.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type SessionType string

const (
	SessionLive      SessionType = "LIVE"
	SessionSelfPaced SessionType = "SELF_PACED"
	SessionPractice  SessionType = "PRACTICE"
)

// QuestionStatus is the state of a question instance within its session queue.
type QuestionStatus string

const (
	QuestionQueued    QuestionStatus = "QUEUED"
	QuestionActive    QuestionStatus = "ACTIVE"
	QuestionSkipped   QuestionStatus = "SKIPPED"
	QuestionCompleted QuestionStatus = "COMPLETED"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "MULTIPLE_CHOICE"
	TrueFalse      QuestionType = "TRUE_FALSE"
	ShortAnswer    QuestionType = "SHORT_ANSWER"
	WordCloud      QuestionType = "WORD_CLOUD"
	PinOnMap       QuestionType = "PIN_ON_MAP"
)

// Settings are the host-chosen options of a session.
type Settings struct {
	MaxParticipants    int  `json:"maxParticipants"` // 0 = unlimited
	AllowLateJoin      bool `json:"allowLateJoin"`
	ShowLeaderboard    bool `json:"showLeaderboard"`
	ShowCorrectAnswers bool `json:"showCorrectAnswers"`
	ShuffleQuestions   bool `json:"shuffleQuestions"`
	ShuffleOptions     bool `json:"shuffleOptions"`
	EnableHints        bool `json:"enableHints"`
	PointsForSpeed     bool `json:"pointsForSpeed"`
}

// DefaultSettings mirrors the defaults a host gets without customizing anything.
func DefaultSettings() Settings {
	return Settings{
		AllowLateJoin:      true,
		ShowLeaderboard:    true,
		ShowCorrectAnswers: true,
		EnableHints:        true,
		PointsForSpeed:     true,
	}
}

// Session is one run of a quiz against a question bank.
type Session struct {
	ID                 string        `json:"sessionId"`
	Code               string        `json:"sessionCode"`
	Name               string        `json:"sessionName"`
	Description        string        `json:"description,omitempty"`
	Type               SessionType   `json:"sessionType"`
	Status             SessionStatus `json:"status"`
	HostID             string        `json:"hostUserId"`
	QuestionBankID     string        `json:"questionBankId"`
	MapID              string        `json:"mapId,omitempty"`
	Settings           Settings      `json:"settings"`
	ScheduledStartTime *time.Time    `json:"scheduledStartTime,omitempty"`
	ActualStartTime    *time.Time    `json:"actualStartTime,omitempty"`
	EndTime            *time.Time    `json:"endTime,omitempty"`
	TotalParticipants  int           `json:"totalParticipants"`
	TotalResponses     int           `json:"totalResponses"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether c lies within [-90, 90] latitude and [-180, 180] longitude.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Option represents a possible answer for a choice question.
type Option struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	Correct      bool   `json:"correct"`
	DisplayOrder int    `json:"displayOrder"`
}

// Question is a bank question. Sessions keep their own snapshot of it.
type Question struct {
	ID                     string       `json:"id"`
	BankID                 string       `json:"bankId"`
	Type                   QuestionType `json:"type"`
	Text                   string       `json:"text"`
	Points                 int          `json:"points"`
	TimeLimit              int          `json:"timeLimit"` // seconds
	CorrectAnswer          string       `json:"correctAnswer,omitempty"`
	CorrectLocation        *Coordinate  `json:"correctLocation,omitempty"`
	AcceptanceRadiusMeters int          `json:"acceptanceRadiusMeters,omitempty"`
	Hint                   string       `json:"hint,omitempty"`
	Explanation            string       `json:"explanation,omitempty"`
	DisplayOrder           int          `json:"displayOrder"`
	IsActive               bool         `json:"isActive"`
	Options                []Option     `json:"options,omitempty"`
}

// QuestionBank is a read-only snapshot of a bank's questions.
type QuestionBank struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	OwnerID   string     `json:"ownerId"`
	Questions []Question `json:"questions"`
}

// QuestionInstance is a session-scoped, ordered copy of a bank question.
type QuestionInstance struct {
	ID                  string         `json:"sessionQuestionId"`
	SessionID           string         `json:"sessionId"`
	QuestionID          string         `json:"questionId"`
	Question            Question       `json:"question"`
	QueueOrder          int            `json:"queueOrder"`
	Status              QuestionStatus `json:"status"`
	PointsOverride      *int           `json:"pointsOverride,omitempty"`
	TimeLimitOverride   *int           `json:"timeLimitOverride,omitempty"`
	TimeLimitExtensions int            `json:"timeLimitExtensions"`
	StartedAt           *time.Time     `json:"startedAt,omitempty"`
	EndedAt             *time.Time     `json:"endedAt,omitempty"`
	TotalResponses      int            `json:"totalResponses"`
	CorrectResponses    int            `json:"correctResponses"`
}

// Points returns the override if set, else the bank question's points.
func (q *QuestionInstance) Points() int {
	if q.PointsOverride != nil {
		return *q.PointsOverride
	}
	return q.Question.Points
}

// TimeLimit returns the effective time limit in seconds.
func (q *QuestionInstance) TimeLimit() int {
	if q.TimeLimitOverride != nil {
		return *q.TimeLimitOverride
	}
	return q.Question.TimeLimit
}

// Participant is a joined user or guest tracked within one session.
type Participant struct {
	ID                  string     `json:"sessionParticipantId"`
	SessionID           string     `json:"sessionId"`
	ActorID             string     `json:"userId,omitempty"` // empty for guests
	DisplayName         string     `json:"displayName"`
	IsGuest             bool       `json:"isGuest"`
	DeviceInfo          string     `json:"deviceInfo,omitempty"`
	JoinedAt            time.Time  `json:"joinedAt"`
	LeftAt              *time.Time `json:"leftAt,omitempty"`
	IsActive            bool       `json:"isActive"`
	TotalScore          int        `json:"totalScore"`
	TotalCorrect        int        `json:"totalCorrect"`
	TotalAnswered       int        `json:"totalAnswered"`
	AverageResponseTime float64    `json:"averageResponseTime"`
	Rank                int        `json:"rank"`
}

// Submission is a participant's raw answer to the active question.
type Submission struct {
	OptionID            string      `json:"questionOptionId,omitempty"`
	Text                string      `json:"responseText,omitempty"`
	Location            *Coordinate `json:"location,omitempty"`
	ResponseTimeSeconds float64     `json:"responseTimeSeconds"`
	UsedHint            bool        `json:"usedHint"`
}

// Response is one participant's scored answer to one question instance.
type Response struct {
	ID                  string      `json:"studentResponseId"`
	SessionID           string      `json:"sessionId"`
	QuestionInstanceID  string      `json:"sessionQuestionId"`
	ParticipantID       string      `json:"sessionParticipantId"`
	OptionID            string      `json:"questionOptionId,omitempty"`
	Text                string      `json:"responseText,omitempty"`
	Location            *Coordinate `json:"location,omitempty"`
	Correct             bool        `json:"isCorrect"`
	PointsEarned        int         `json:"pointsEarned"`
	ResponseTimeSeconds float64     `json:"responseTimeSeconds"`
	UsedHint            bool        `json:"usedHint"`
	DistanceErrorMeters *float64    `json:"distanceErrorMeters,omitempty"`
	SubmittedAt         time.Time   `json:"submittedAt"`
}

// LeaderboardEntry is a ranked view of a participant.
type LeaderboardEntry struct {
	Rank                int     `json:"rank"`
	ParticipantID       string  `json:"sessionParticipantId"`
	DisplayName         string  `json:"displayName"`
	TotalScore          int     `json:"totalScore"`
	TotalCorrect        int     `json:"totalCorrect"`
	TotalAnswered       int     `json:"totalAnswered"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	IsCurrentActor      bool    `json:"isCurrentUser"`
}

// Leaderboard captures the ordered scoreboard for a session.
type Leaderboard struct {
	SessionID string             `json:"sessionId"`
	Entries   []LeaderboardEntry `json:"leaderboard"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// SubmitResult summarizes the outcome of a submission for the submitting participant.
type SubmitResult struct {
	ResponseID          string    `json:"studentResponseId"`
	Correct             bool      `json:"isCorrect"`
	PointsEarned        int       `json:"pointsEarned"`
	TotalScore          int       `json:"totalScore"`
	Rank                int       `json:"currentRank"`
	Explanation         string    `json:"explanation,omitempty"`
	DistanceErrorMeters *float64  `json:"distanceErrorMeters,omitempty"`
	SubmittedAt         time.Time `json:"submittedAt"`
}

// MapState is the host's map viewport pushed to participants.
type MapState struct {
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	ZoomLevel          int     `json:"zoomLevel"`
	Bearing            float64 `json:"bearing,omitempty"`
	Pitch              float64 `json:"pitch,omitempty"`
	TransitionDuration int     `json:"transitionDuration,omitempty"`
}

// Clone returns a copy that shares no pointers with s.
func (s *Session) Clone() *Session {
	c := *s
	c.ScheduledStartTime = cloneTime(s.ScheduledStartTime)
	c.ActualStartTime = cloneTime(s.ActualStartTime)
	c.EndTime = cloneTime(s.EndTime)
	return &c
}

func (q Question) Clone() Question {
	c := q
	if q.CorrectLocation != nil {
		loc := *q.CorrectLocation
		c.CorrectLocation = &loc
	}
	if q.Options != nil {
		c.Options = append([]Option(nil), q.Options...)
	}
	return c
}

func (q *QuestionInstance) Clone() *QuestionInstance {
	c := *q
	c.Question = q.Question.Clone()
	c.PointsOverride = cloneInt(q.PointsOverride)
	c.TimeLimitOverride = cloneInt(q.TimeLimitOverride)
	c.StartedAt = cloneTime(q.StartedAt)
	c.EndedAt = cloneTime(q.EndedAt)
	return &c
}

func (p *Participant) Clone() *Participant {
	c := *p
	c.LeftAt = cloneTime(p.LeftAt)
	return &c
}

func (r *Response) Clone() *Response {
	c := *r
	if r.Location != nil {
		loc := *r.Location
		c.Location = &loc
	}
	if r.DistanceErrorMeters != nil {
		d := *r.DistanceErrorMeters
		c.DistanceErrorMeters = &d
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

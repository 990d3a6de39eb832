package app

import (
	"math"
	"strings"

	"quiz-session-engine/internal/domain"
)

const (
	earthRadiusMeters       = 6371000.0
	defaultAcceptanceRadius = 1000
	speedBonusShare         = 0.5
)

// Verdict is the outcome of checking a submission against a question.
type Verdict struct {
	Correct        bool
	DistanceMeters *float64
}

// ScoreInput carries everything needed to score one submission.
type ScoreInput struct {
	Question          domain.Question
	Submission        domain.Submission
	BasePoints        int
	TimeLimitSeconds  int
	SpeedBonusEnabled bool
}

// Score is the pure scoring entry point: it validates the submission for the
// question's type, decides correctness and computes the points earned.
func Score(in ScoreInput) (Verdict, int, error) {
	verdict, err := Evaluate(in.Question, in.Submission)
	if err != nil {
		return Verdict{}, 0, err
	}
	points := Points(in.BasePoints, verdict.Correct, in.SpeedBonusEnabled, in.Submission.ResponseTimeSeconds, in.TimeLimitSeconds)
	return verdict, points, nil
}

// Evaluate dispatches on the closed set of question types.
func Evaluate(q domain.Question, s domain.Submission) (Verdict, error) {
	switch q.Type {
	case domain.MultipleChoice, domain.TrueFalse:
		return evaluateChoice(q, s)
	case domain.ShortAnswer:
		return evaluateShortAnswer(q, s)
	case domain.WordCloud:
		return evaluateWordCloud(s)
	case domain.PinOnMap:
		return evaluatePin(q, s)
	default:
		return Verdict{}, domain.ErrUnsupportedType
	}
}

func evaluateChoice(q domain.Question, s domain.Submission) (Verdict, error) {
	if s.OptionID == "" {
		return Verdict{}, domain.ErrMissingOption
	}
	for _, opt := range q.Options {
		if opt.ID == s.OptionID {
			return Verdict{Correct: opt.Correct}, nil
		}
	}
	return Verdict{}, domain.ErrInvalidOption
}

func evaluateShortAnswer(q domain.Question, s domain.Submission) (Verdict, error) {
	answer := strings.TrimSpace(s.Text)
	if answer == "" {
		return Verdict{}, domain.ErrMissingText
	}
	return Verdict{Correct: strings.EqualFold(answer, strings.TrimSpace(q.CorrectAnswer))}, nil
}

// Word clouds have no right answer; every non-blank entry earns the points.
func evaluateWordCloud(s domain.Submission) (Verdict, error) {
	if strings.TrimSpace(s.Text) == "" {
		return Verdict{}, domain.ErrMissingText
	}
	return Verdict{Correct: true}, nil
}

func evaluatePin(q domain.Question, s domain.Submission) (Verdict, error) {
	if s.Location == nil {
		return Verdict{}, domain.ErrMissingCoordinates
	}
	if !s.Location.Valid() {
		return Verdict{}, domain.ErrInvalidCoordinates
	}
	if q.CorrectLocation == nil {
		return Verdict{}, domain.ErrNoCorrectLocation
	}
	radius := q.AcceptanceRadiusMeters
	if radius <= 0 {
		radius = defaultAcceptanceRadius
	}
	distance := Haversine(*s.Location, *q.CorrectLocation)
	return Verdict{Correct: distance <= float64(radius), DistanceMeters: &distance}, nil
}

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b domain.Coordinate) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// Points awards basePoints for a correct answer plus, when enabled, a speed bonus of up to
// half the base that shrinks linearly to zero at the time limit.
func Points(basePoints int, correct, speedBonus bool, responseTimeSeconds float64, timeLimitSeconds int) int {
	if !correct {
		return 0
	}
	points := basePoints
	if speedBonus && responseTimeSeconds > 0 && timeLimitSeconds > 0 {
		ratio := 1 - responseTimeSeconds/float64(timeLimitSeconds)
		if ratio > 0 {
			points += int(math.Floor(float64(basePoints) * speedBonusShare * ratio))
		}
	}
	return points
}

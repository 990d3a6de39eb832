package app

import (
	"errors"
	"math"
	"testing"

	"quiz-session-engine/internal/domain"
)

func choiceQuestion() domain.Question {
	return domain.Question{
		ID:        "q1",
		Type:      domain.MultipleChoice,
		Points:    100,
		TimeLimit: 30,
		Options: []domain.Option{
			{ID: "o1", Text: "Hanoi", Correct: false},
			{ID: "o2", Text: "Saigon", Correct: true},
		},
	}
}

func TestScoreSpeedBonus(t *testing.T) {
	verdict, points, err := Score(ScoreInput{
		Question:          choiceQuestion(),
		Submission:        domain.Submission{OptionID: "o2", ResponseTimeSeconds: 6},
		BasePoints:        100,
		TimeLimitSeconds:  30,
		SpeedBonusEnabled: true,
	})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if !verdict.Correct || points != 140 {
		t.Fatalf("expected correct with 140 points, got %v/%d", verdict.Correct, points)
	}
}

func TestScoreWrongOptionEarnsNothing(t *testing.T) {
	_, points, err := Score(ScoreInput{
		Question:          choiceQuestion(),
		Submission:        domain.Submission{OptionID: "o1", ResponseTimeSeconds: 1},
		BasePoints:        100,
		TimeLimitSeconds:  30,
		SpeedBonusEnabled: true,
	})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if points != 0 {
		t.Fatalf("expected 0 points, got %d", points)
	}
}

func TestEvaluateValidation(t *testing.T) {
	pin := domain.Question{Type: domain.PinOnMap, CorrectLocation: &domain.Coordinate{Latitude: 1, Longitude: 1}}
	cases := []struct {
		name string
		q    domain.Question
		s    domain.Submission
		want error
	}{
		{"missing option", choiceQuestion(), domain.Submission{}, domain.ErrMissingOption},
		{"foreign option", choiceQuestion(), domain.Submission{OptionID: "other"}, domain.ErrInvalidOption},
		{"blank short answer", domain.Question{Type: domain.ShortAnswer, CorrectAnswer: "x"}, domain.Submission{Text: "  "}, domain.ErrMissingText},
		{"blank word cloud", domain.Question{Type: domain.WordCloud}, domain.Submission{}, domain.ErrMissingText},
		{"pin without location", pin, domain.Submission{}, domain.ErrMissingCoordinates},
		{"pin without answer", domain.Question{Type: domain.PinOnMap}, domain.Submission{Location: &domain.Coordinate{}}, domain.ErrNoCorrectLocation},
		{"unknown type", domain.Question{Type: "ESSAY"}, domain.Submission{Text: "x"}, domain.ErrUnsupportedType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Evaluate(tc.q, tc.s); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEvaluateTextAnswers(t *testing.T) {
	q := domain.Question{Type: domain.ShortAnswer, CorrectAnswer: " Mekong "}
	v, err := Evaluate(q, domain.Submission{Text: "mekong"})
	if err != nil || !v.Correct {
		t.Fatalf("expected case-insensitive match, got %+v %v", v, err)
	}
	v, _ = Evaluate(q, domain.Submission{Text: "Red River"})
	if v.Correct {
		t.Fatalf("expected mismatch")
	}
	v, _ = Evaluate(domain.Question{Type: domain.WordCloud}, domain.Submission{Text: "anything"})
	if !v.Correct {
		t.Fatalf("word cloud entries are always correct")
	}
}

func TestEvaluatePinOutsideRadius(t *testing.T) {
	q := domain.Question{
		Type:                   domain.PinOnMap,
		CorrectLocation:        &domain.Coordinate{Latitude: 10, Longitude: 106},
		AcceptanceRadiusMeters: 50,
	}
	v, err := Evaluate(q, domain.Submission{Location: &domain.Coordinate{Latitude: 10.0017986, Longitude: 106}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v.Correct {
		t.Fatalf("expected incorrect outside the radius")
	}
	if v.DistanceMeters == nil || math.Abs(*v.DistanceMeters-200) > 1 {
		t.Fatalf("expected ~200m, got %v", v.DistanceMeters)
	}

	q.AcceptanceRadiusMeters = 0
	v, _ = Evaluate(q, domain.Submission{Location: &domain.Coordinate{Latitude: 10.0017986, Longitude: 106}})
	if !v.Correct {
		t.Fatalf("expected default 1000m radius to accept 200m")
	}
}

func TestEvaluatePinRejectsOutOfRangeCoordinates(t *testing.T) {
	q := domain.Question{
		Type:                   domain.PinOnMap,
		CorrectLocation:        &domain.Coordinate{Latitude: 10, Longitude: 106},
		AcceptanceRadiusMeters: 50,
	}
	// 370/466 wraps onto the correct point under the trig
	for _, loc := range []domain.Coordinate{
		{Latitude: 370, Longitude: 466},
		{Latitude: -90.5, Longitude: 0},
		{Latitude: 0, Longitude: 180.01},
		{Latitude: math.NaN(), Longitude: 106},
	} {
		loc := loc
		_, err := Evaluate(q, domain.Submission{Location: &loc})
		if !errors.Is(err, domain.ErrInvalidCoordinates) {
			t.Fatalf("%+v: expected invalid coordinates, got %v", loc, err)
		}
		if domain.KindOf(err) != domain.KindValidation {
			t.Fatalf("expected validation kind, got %v", domain.KindOf(err))
		}
	}

	v, err := Evaluate(q, domain.Submission{Location: &domain.Coordinate{Latitude: 10, Longitude: 106}})
	if err != nil || !v.Correct {
		t.Fatalf("expected in-range pin on target to score, got %+v %v", v, err)
	}
}

func TestHaversine(t *testing.T) {
	paris := domain.Coordinate{Latitude: 48.8566, Longitude: 2.3522}
	london := domain.Coordinate{Latitude: 51.5074, Longitude: -0.1278}

	if d := Haversine(paris, paris); d != 0 {
		t.Fatalf("expected zero distance to self, got %f", d)
	}
	if Haversine(paris, london) != Haversine(london, paris) {
		t.Fatalf("expected symmetric distance")
	}
	if d := Haversine(paris, london); d < 340000 || d > 347000 {
		t.Fatalf("unexpected Paris-London distance %f", d)
	}
}

func TestSpeedBonusMonotonic(t *testing.T) {
	prev := math.MaxInt
	for rt := 0.5; rt <= 40; rt += 0.5 {
		p := Points(100, true, true, rt, 30)
		if p > prev {
			t.Fatalf("points rose from %d to %d at %.1fs", prev, p, rt)
		}
		if rt >= 30 && p != 100 {
			t.Fatalf("expected no bonus at or past the limit, got %d at %.1fs", p, rt)
		}
		prev = p
	}
	if p := Points(100, true, false, 1, 30); p != 100 {
		t.Fatalf("expected base points without bonus, got %d", p)
	}
	if p := Points(100, true, true, 0, 30); p != 100 {
		t.Fatalf("expected no bonus for zero response time, got %d", p)
	}
}

package models

import "testing"

func TestMaxPoints(t *testing.T) {
	domino := &Question{QuestionType: QuestionTypeDomino}
	if domino.MaxPoints() != 1 {
		t.Errorf("domino MaxPoints = %d, want 1", domino.MaxPoints())
	}

	arrow := &Question{QuestionType: QuestionTypeArrow}
	if arrow.MaxPoints() != 1 {
		t.Errorf("arrow MaxPoints = %d, want 1", arrow.MaxPoints())
	}

	mcq := &Question{
		QuestionType: QuestionTypeMultipleChoice,
		Propositions: []Proposition{{Text: "a"}, {Text: "b"}, {Text: "c"}},
	}
	if mcq.MaxPoints() != 3 {
		t.Errorf("mcq MaxPoints = %d, want 3", mcq.MaxPoints())
	}
}

func TestSanitizedStripsAnswers(t *testing.T) {
	q := &Question{
		QuestionType:  QuestionTypeDomino,
		CorrectAnswer: &DominoValue{TopValue: 3, BottomValue: 2},
	}
	clean := q.Sanitized()
	if clean.CorrectAnswer != nil {
		t.Error("sanitized domino question must not carry the correct answer")
	}
	if q.CorrectAnswer == nil {
		t.Error("sanitizing must not mutate the original")
	}

	mcq := &Question{
		QuestionType: QuestionTypeMultipleChoice,
		Propositions: []Proposition{
			{Text: "a", CorrectEvaluation: "V"},
			{Text: "b", CorrectEvaluation: "F"},
		},
	}
	cleanMcq := mcq.Sanitized()
	for i, p := range cleanMcq.Propositions {
		if p.CorrectEvaluation != "" {
			t.Errorf("proposition %d still carries its evaluation", i)
		}
		if p.Text == "" {
			t.Errorf("proposition %d lost its text", i)
		}
	}
	if mcq.Propositions[0].CorrectEvaluation != "V" {
		t.Error("sanitizing must not mutate the original propositions")
	}
}

func TestIsValidEvaluation(t *testing.T) {
	for _, e := range []string{"V", "F", "?", "X"} {
		if !IsValidEvaluation(e) {
			t.Errorf("IsValidEvaluation(%q) = false", e)
		}
	}
	for _, e := range []string{"", "v", "T", "VF"} {
		if IsValidEvaluation(e) {
			t.Errorf("IsValidEvaluation(%q) = true", e)
		}
	}
}

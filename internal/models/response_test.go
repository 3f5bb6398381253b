package models

import (
	"encoding/json"
	"testing"
	"time"
)

func intp(v int) *int { return &v }

func dominoQuestion(top, bottom int) *Question {
	return &Question{
		ID:           "q1",
		QuestionType: QuestionTypeDomino,
		CorrectAnswer: &DominoValue{
			DominoID:    1,
			TopValue:    top,
			BottomValue: bottom,
		},
	}
}

func TestEvaluateDomino(t *testing.T) {
	testCases := []struct {
		name        string
		correct     [2]int
		top, bottom *int
		isCorrect   bool
		isReversed  bool
		isHalf      bool
	}{
		{"exact match", [2]int{3, 2}, intp(3), intp(2), true, false, false},
		{"reversed", [2]int{3, 2}, intp(2), intp(3), false, true, false},
		{"half correct top", [2]int{3, 2}, intp(3), intp(5), false, false, true},
		{"half correct bottom", [2]int{3, 2}, intp(7), intp(2), false, false, true},
		{"half correct cross", [2]int{3, 2}, intp(2), intp(8), false, false, true},
		{"fully wrong", [2]int{3, 2}, intp(6), intp(6), false, false, false},
		{"missing top", [2]int{3, 2}, nil, intp(2), false, false, false},
		{"missing bottom", [2]int{3, 2}, intp(3), nil, false, false, false},
		{"symmetric domino exact wins over reversed", [2]int{4, 4}, intp(4), intp(4), true, false, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := dominoQuestion(tc.correct[0], tc.correct[1])
			r := &QuestionResponse{
				DominoAnswer: &DominoAnswer{DominoID: 1, TopValue: tc.top, BottomValue: tc.bottom},
			}
			r.Evaluate(q)

			if r.IsCorrect != tc.isCorrect {
				t.Errorf("IsCorrect = %v, want %v", r.IsCorrect, tc.isCorrect)
			}
			if r.IsReversed != tc.isReversed {
				t.Errorf("IsReversed = %v, want %v", r.IsReversed, tc.isReversed)
			}
			if r.IsHalfCorrect != tc.isHalf {
				t.Errorf("IsHalfCorrect = %v, want %v", r.IsHalfCorrect, tc.isHalf)
			}

			// At most one of the three verdicts may hold.
			count := 0
			for _, v := range []bool{r.IsCorrect, r.IsReversed, r.IsHalfCorrect} {
				if v {
					count++
				}
			}
			if count > 1 {
				t.Errorf("verdicts are not mutually exclusive: correct=%v reversed=%v half=%v",
					r.IsCorrect, r.IsReversed, r.IsHalfCorrect)
			}
		})
	}
}

func TestEvaluateDominoNoAnswer(t *testing.T) {
	q := dominoQuestion(3, 2)
	r := &QuestionResponse{IsCorrect: true, IsReversed: true, IsHalfCorrect: true}
	r.Evaluate(q)

	if r.IsCorrect || r.IsReversed || r.IsHalfCorrect {
		t.Errorf("missing answer must clear all verdicts, got correct=%v reversed=%v half=%v",
			r.IsCorrect, r.IsReversed, r.IsHalfCorrect)
	}
}

func TestEvaluateArrowUsesDominoRules(t *testing.T) {
	q := dominoQuestion(1, 6)
	q.QuestionType = QuestionTypeArrow

	r := &QuestionResponse{
		DominoAnswer: &DominoAnswer{DominoID: 1, TopValue: intp(6), BottomValue: intp(1)},
	}
	r.Evaluate(q)
	if !r.IsReversed {
		t.Errorf("arrow question should score with domino rules, expected reversed")
	}
}

func mcqQuestion(evals ...string) *Question {
	q := &Question{ID: "q2", QuestionType: QuestionTypeMultipleChoice}
	for _, e := range evals {
		q.Propositions = append(q.Propositions, Proposition{Text: "p", CorrectEvaluation: e})
	}
	return q
}

func TestEvaluatePropositions(t *testing.T) {
	testCases := []struct {
		name             string
		correct          []string
		candidate        []PropositionResponse
		wantCorrect      bool
		wantItemVerdicts []bool
	}{
		{
			name:    "all correct",
			correct: []string{"V", "F", "?"},
			candidate: []PropositionResponse{
				{PropositionIndex: 0, CandidateEvaluation: "V"},
				{PropositionIndex: 1, CandidateEvaluation: "F"},
				{PropositionIndex: 2, CandidateEvaluation: "?"},
			},
			wantCorrect:      true,
			wantItemVerdicts: []bool{true, true, true},
		},
		{
			name:    "one mismatch fails the question",
			correct: []string{"V", "F", "?"},
			candidate: []PropositionResponse{
				{PropositionIndex: 0, CandidateEvaluation: "V"},
				{PropositionIndex: 1, CandidateEvaluation: "V"},
				{PropositionIndex: 2, CandidateEvaluation: "?"},
			},
			wantCorrect:      false,
			wantItemVerdicts: []bool{true, false, true},
		},
		{
			name:    "explicit X on two of three",
			correct: []string{"V", "F", "?"},
			candidate: []PropositionResponse{
				{PropositionIndex: 0, CandidateEvaluation: "V"},
				{PropositionIndex: 1, CandidateEvaluation: "X"},
				{PropositionIndex: 2, CandidateEvaluation: "X"},
			},
			wantCorrect:      false,
			wantItemVerdicts: []bool{true, false, false},
		},
		{
			name:    "missing proposition fails the question",
			correct: []string{"V", "F"},
			candidate: []PropositionResponse{
				{PropositionIndex: 0, CandidateEvaluation: "V"},
			},
			wantCorrect:      false,
			wantItemVerdicts: []bool{true, false},
		},
		{
			name:    "out of order indexes still match",
			correct: []string{"V", "F"},
			candidate: []PropositionResponse{
				{PropositionIndex: 1, CandidateEvaluation: "F"},
				{PropositionIndex: 0, CandidateEvaluation: "V"},
			},
			wantCorrect:      true,
			wantItemVerdicts: []bool{true, true},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := mcqQuestion(tc.correct...)
			r := &QuestionResponse{PropositionResponses: tc.candidate}
			r.Evaluate(q)

			if r.IsCorrect != tc.wantCorrect {
				t.Errorf("IsCorrect = %v, want %v", r.IsCorrect, tc.wantCorrect)
			}
			if len(r.PropositionResponses) != len(tc.correct) {
				t.Fatalf("evaluated list has %d entries, want one per proposition (%d)",
					len(r.PropositionResponses), len(tc.correct))
			}
			for i, want := range tc.wantItemVerdicts {
				if r.PropositionResponses[i].IsCorrect != want {
					t.Errorf("proposition %d verdict = %v, want %v", i, r.PropositionResponses[i].IsCorrect, want)
				}
			}
		})
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	q := mcqQuestion("V", "F")
	r := &QuestionResponse{PropositionResponses: []PropositionResponse{
		{PropositionIndex: 0, CandidateEvaluation: "V"},
		{PropositionIndex: 1, CandidateEvaluation: "F"},
	}}

	r.Evaluate(q)
	first := r.IsCorrect
	r.Evaluate(q)
	if r.IsCorrect != first {
		t.Errorf("re-evaluation changed the verdict: %v then %v", first, r.IsCorrect)
	}
	if len(r.PropositionResponses) != 2 {
		t.Errorf("re-evaluation changed the evaluated list length: %d", len(r.PropositionResponses))
	}
}

func TestRecordAnswerDomino(t *testing.T) {
	r := &QuestionResponse{IsSkipped: true}
	now := time.Now()

	r.RecordAnswer(json.RawMessage(`{"dominoId":1,"topValue":3,"bottomValue":2}`), now)

	if r.DominoAnswer == nil {
		t.Fatal("expected a domino answer")
	}
	if *r.DominoAnswer.TopValue != 3 || *r.DominoAnswer.BottomValue != 2 {
		t.Errorf("domino answer = %+v", r.DominoAnswer)
	}
	if r.IsSkipped {
		t.Error("answering must clear the skipped flag")
	}
	if r.AnsweredAt == nil {
		t.Error("answering must stamp AnsweredAt")
	}
	if len(r.Events) != 1 || r.Events[0].EventType != EventAnswer {
		t.Errorf("expected a single answer event, got %+v", r.Events)
	}
}

func TestRecordAnswerChangeEvent(t *testing.T) {
	r := &QuestionResponse{}
	now := time.Now()

	r.RecordAnswer(json.RawMessage(`{"dominoId":1,"topValue":1,"bottomValue":1}`), now)
	r.RecordAnswer(json.RawMessage(`{"dominoId":1,"topValue":2,"bottomValue":2}`), now)

	if r.AnswerChanges != 2 {
		t.Errorf("AnswerChanges = %d, want 2", r.AnswerChanges)
	}
	if len(r.Events) != 2 || r.Events[1].EventType != EventChange {
		t.Errorf("second submission should log a change event, got %+v", r.Events)
	}
}

func TestRecordAnswerPropositions(t *testing.T) {
	r := &QuestionResponse{
		DominoAnswer: &DominoAnswer{DominoID: 1, TopValue: intp(1), BottomValue: intp(1)},
	}
	r.RecordAnswer(json.RawMessage(`[{"propositionIndex":0,"candidateEvaluation":"V"}]`), time.Now())

	if r.DominoAnswer != nil {
		t.Error("a proposition answer must clear the domino answer")
	}
	if len(r.PropositionResponses) != 1 || r.PropositionResponses[0].CandidateEvaluation != "V" {
		t.Errorf("proposition responses = %+v", r.PropositionResponses)
	}
}

func TestRecordAnswerMalformedPropositionList(t *testing.T) {
	r := &QuestionResponse{}
	r.RecordAnswer(json.RawMessage(`[{"propositionIndex":0,"candidateEvaluation":"Z"}]`), time.Now())

	if r.PropositionResponses == nil || len(r.PropositionResponses) != 0 {
		t.Errorf("malformed list must be stored empty, got %+v", r.PropositionResponses)
	}
	if r.AnsweredAt == nil {
		t.Error("the submission itself is still recorded")
	}
}

func TestSkipClearsAnswer(t *testing.T) {
	r := &QuestionResponse{
		DominoAnswer:  &DominoAnswer{DominoID: 1, TopValue: intp(1), BottomValue: intp(1)},
		IsCorrect:     true,
		IsHalfCorrect: true,
	}
	r.Skip(time.Now())

	if !r.IsSkipped {
		t.Error("expected IsSkipped")
	}
	if r.DominoAnswer != nil || r.IsCorrect || r.IsHalfCorrect {
		t.Error("skip must clear the answer and verdicts")
	}
	if r.WasAnswered() {
		t.Error("a skipped response is not answered")
	}
}

func TestToggleFlag(t *testing.T) {
	r := &QuestionResponse{}
	now := time.Now()

	r.ToggleFlag(now)
	if !r.IsFlagged || r.Events[0].EventType != EventFlag {
		t.Errorf("first toggle should flag, got flagged=%v events=%+v", r.IsFlagged, r.Events)
	}
	r.ToggleFlag(now)
	if r.IsFlagged || r.Events[1].EventType != EventUnflag {
		t.Errorf("second toggle should unflag, got flagged=%v events=%+v", r.IsFlagged, r.Events)
	}
}

func TestRecordVisit(t *testing.T) {
	r := &QuestionResponse{}
	first := time.Now()
	second := first.Add(time.Minute)

	r.RecordVisit(first)
	r.RecordVisit(second)

	if r.VisitCount != 2 {
		t.Errorf("VisitCount = %d, want 2", r.VisitCount)
	}
	if r.FirstVisitAt == nil || !r.FirstVisitAt.Equal(first) {
		t.Errorf("FirstVisitAt = %v, want %v", r.FirstVisitAt, first)
	}
	if r.LastVisitAt == nil || !r.LastVisitAt.Equal(second) {
		t.Errorf("LastVisitAt = %v, want %v", r.LastVisitAt, second)
	}
}

func TestWasAnsweredPartialDomino(t *testing.T) {
	r := &QuestionResponse{
		DominoAnswer: &DominoAnswer{DominoID: 1, TopValue: intp(3)},
	}
	if r.WasAnswered() {
		t.Error("a domino with one side filled is not an answer")
	}
}

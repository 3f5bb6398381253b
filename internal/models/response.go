package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Response event types, in the order a candidate can produce them.
const (
	EventVisit  = "visit"
	EventAnswer = "answer"
	EventChange = "change"
	EventFlag   = "flag"
	EventUnflag = "unflag"
	EventSkip   = "skip"
)

type ResponseEvent struct {
	EventType string      `bson:"event_type" json:"eventType"`
	Timestamp time.Time   `bson:"timestamp" json:"timestamp"`
	Data      interface{} `bson:"data,omitempty" json:"data,omitempty"`
}

// DominoAnswer is a candidate's submission for a domino-family question. The
// sides are pointers because a candidate may submit a partially filled domino;
// an absent side can never score.
type DominoAnswer struct {
	DominoID    int  `bson:"domino_id" json:"dominoId"`
	TopValue    *int `bson:"top_value,omitempty" json:"topValue,omitempty"`
	BottomValue *int `bson:"bottom_value,omitempty" json:"bottomValue,omitempty"`
}

type PropositionResponse struct {
	PropositionIndex    int    `bson:"proposition_index" json:"propositionIndex"`
	CandidateEvaluation string `bson:"candidate_evaluation,omitempty" json:"candidateEvaluation,omitempty"`
	IsCorrect           bool   `bson:"is_correct" json:"isCorrect"`
}

// QuestionResponse is one candidate's interaction state for one question within
// an attempt. At most one of DominoAnswer and PropositionResponses is set once
// the question has been answered; recording one kind clears the other.
type QuestionResponse struct {
	ID                   string                `bson:"_id,omitempty" json:"id"`
	AttemptID            string                `bson:"attempt_id" json:"attemptId"`
	QuestionID           string                `bson:"question_id" json:"questionId"`
	CandidateID          string                `bson:"candidate_id" json:"candidateId"`
	DominoAnswer         *DominoAnswer         `bson:"domino_answer,omitempty" json:"dominoAnswer,omitempty"`
	PropositionResponses []PropositionResponse `bson:"proposition_responses,omitempty" json:"propositionResponses,omitempty"`
	IsCorrect            bool                  `bson:"is_correct" json:"isCorrect"`
	IsReversed           bool                  `bson:"is_reversed" json:"isReversed"`
	IsHalfCorrect        bool                  `bson:"is_half_correct" json:"isHalfCorrect"`
	IsFlagged            bool                  `bson:"is_flagged" json:"isFlagged"`
	IsSkipped            bool                  `bson:"is_skipped" json:"isSkipped"`
	TimeSpent            int64                 `bson:"time_spent" json:"timeSpent"`
	VisitCount           int                   `bson:"visit_count" json:"visitCount"`
	AnswerChanges        int                   `bson:"answer_changes" json:"answerChanges"`
	FirstVisitAt         *time.Time            `bson:"first_visit_at,omitempty" json:"firstVisitAt,omitempty"`
	LastVisitAt          *time.Time            `bson:"last_visit_at,omitempty" json:"lastVisitAt,omitempty"`
	AnsweredAt           *time.Time            `bson:"answered_at,omitempty" json:"answeredAt,omitempty"`
	Events               []ResponseEvent       `bson:"events,omitempty" json:"events,omitempty"`
	CreatedAt            time.Time             `bson:"created_at,omitempty" json:"createdAt,omitempty"`
	UpdatedAt            time.Time             `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// WasAnswered reports whether the response carries an actual answer, which is
// what the aggregator counts as "answered".
func (r *QuestionResponse) WasAnswered() bool {
	if r.IsSkipped {
		return false
	}
	if r.DominoAnswer != nil {
		return r.DominoAnswer.TopValue != nil && r.DominoAnswer.BottomValue != nil
	}
	return len(r.PropositionResponses) > 0
}

// RecordVisit stamps the visit timestamps, bumps the visit counter and appends
// a visit event.
func (r *QuestionResponse) RecordVisit(now time.Time) {
	if r.FirstVisitAt == nil {
		first := now
		r.FirstVisitAt = &first
	}
	last := now
	r.LastVisitAt = &last
	r.VisitCount++
	r.Events = append(r.Events, ResponseEvent{EventType: EventVisit, Timestamp: now})
}

// RecordAnswer normalizes a raw answer payload into either a domino answer or a
// proposition response list, clearing the other family. A malformed proposition
// list is stored empty rather than rejected so a client bug cannot lose the
// candidate's session. Evaluation is left to Evaluate, which needs the question.
func (r *QuestionResponse) RecordAnswer(raw json.RawMessage, now time.Time) {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var props []PropositionResponse
		if err := json.Unmarshal(trimmed, &props); err != nil || !validPropositionResponses(props) {
			props = []PropositionResponse{}
		}
		r.DominoAnswer = nil
		r.PropositionResponses = props
	} else {
		var domino DominoAnswer
		if err := json.Unmarshal(trimmed, &domino); err != nil {
			return
		}
		r.PropositionResponses = nil
		r.DominoAnswer = &domino
	}

	answered := now
	r.AnsweredAt = &answered
	r.IsSkipped = false
	r.AnswerChanges++

	eventType := EventAnswer
	if r.AnswerChanges > 1 {
		eventType = EventChange
	}
	var data interface{}
	if r.DominoAnswer != nil {
		data = r.DominoAnswer
	} else {
		data = r.PropositionResponses
	}
	r.Events = append(r.Events, ResponseEvent{EventType: eventType, Timestamp: now, Data: data})
}

func validPropositionResponses(props []PropositionResponse) bool {
	for _, p := range props {
		if p.PropositionIndex < 0 || !IsValidEvaluation(p.CandidateEvaluation) {
			return false
		}
	}
	return true
}

// ToggleFlag flips the flag and appends the matching event.
func (r *QuestionResponse) ToggleFlag(now time.Time) {
	r.IsFlagged = !r.IsFlagged
	eventType := EventUnflag
	if r.IsFlagged {
		eventType = EventFlag
	}
	r.Events = append(r.Events, ResponseEvent{EventType: eventType, Timestamp: now})
}

// Skip marks the question skipped and clears any recorded answer along with the
// correctness flags.
func (r *QuestionResponse) Skip(now time.Time) {
	r.IsSkipped = true
	r.DominoAnswer = nil
	r.PropositionResponses = nil
	r.IsCorrect = false
	r.IsReversed = false
	r.IsHalfCorrect = false
	r.Events = append(r.Events, ResponseEvent{EventType: EventSkip, Timestamp: now})
}

// Evaluate scores the stored answer against the question's canonical answer.
// It mutates only the correctness flags and the per-proposition results, so
// re-evaluating the same answer is always a no-op.
func (r *QuestionResponse) Evaluate(q *Question) {
	switch {
	case q.IsDominoFamily():
		r.evaluateDomino(q)
	case q.QuestionType == QuestionTypeMultipleChoice:
		r.evaluatePropositions(q)
	}
}

func (r *QuestionResponse) evaluateDomino(q *Question) {
	r.PropositionResponses = nil

	if q.CorrectAnswer == nil || r.DominoAnswer == nil ||
		r.DominoAnswer.TopValue == nil || r.DominoAnswer.BottomValue == nil {
		r.IsCorrect = false
		r.IsReversed = false
		r.IsHalfCorrect = false
		return
	}

	top := *r.DominoAnswer.TopValue
	bottom := *r.DominoAnswer.BottomValue
	correct := q.CorrectAnswer

	exact := top == correct.TopValue && bottom == correct.BottomValue
	reversed := top == correct.BottomValue && bottom == correct.TopValue
	half := top == correct.TopValue || bottom == correct.BottomValue ||
		top == correct.BottomValue || bottom == correct.TopValue

	r.IsCorrect = exact
	r.IsReversed = reversed && !exact
	r.IsHalfCorrect = half && !exact && !reversed
}

func (r *QuestionResponse) evaluatePropositions(q *Question) {
	r.DominoAnswer = nil
	r.IsReversed = false
	r.IsHalfCorrect = false

	if len(q.Propositions) == 0 || r.PropositionResponses == nil {
		r.IsCorrect = false
		for i := range r.PropositionResponses {
			r.PropositionResponses[i].IsCorrect = false
		}
		return
	}

	// A response that does not cover every proposition can never be fully correct.
	allCorrect := len(r.PropositionResponses) == len(q.Propositions)

	evaluated := make([]PropositionResponse, 0, len(q.Propositions))
	for i, prop := range q.Propositions {
		var candidate *PropositionResponse
		for j := range r.PropositionResponses {
			if r.PropositionResponses[j].PropositionIndex == i {
				candidate = &r.PropositionResponses[j]
				break
			}
		}

		if candidate == nil {
			allCorrect = false
			evaluated = append(evaluated, PropositionResponse{PropositionIndex: i, IsCorrect: false})
			continue
		}

		propCorrect := false
		switch {
		case candidate.CandidateEvaluation == EvaluationUnknown:
			allCorrect = false
		case candidate.CandidateEvaluation == prop.CorrectEvaluation:
			propCorrect = true
		default:
			allCorrect = false
		}

		evaluated = append(evaluated, PropositionResponse{
			PropositionIndex:    candidate.PropositionIndex,
			CandidateEvaluation: candidate.CandidateEvaluation,
			IsCorrect:           propCorrect,
		})
	}

	r.IsCorrect = allCorrect
	r.PropositionResponses = evaluated
}

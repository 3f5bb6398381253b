package models

import "time"

// Question types. Arrow questions share the domino answer shape and scoring.
const (
	QuestionTypeDomino         = "DominoQuestion"
	QuestionTypeArrow          = "ArrowQuestion"
	QuestionTypeMultipleChoice = "MultipleChoiceQuestion"
)

// Proposition evaluations a candidate can submit. The canonical evaluation of a
// proposition is never "X"; "X" is the candidate's explicit "don't know".
const (
	EvaluationTrue      = "V"
	EvaluationFalse     = "F"
	EvaluationUncertain = "?"
	EvaluationUnknown   = "X"
)

func IsValidEvaluation(e string) bool {
	switch e {
	case EvaluationTrue, EvaluationFalse, EvaluationUncertain, EvaluationUnknown:
		return true
	}
	return false
}

// DominoValue is a candidate or canonical answer for domino-family questions.
type DominoValue struct {
	DominoID    int `bson:"domino_id" json:"dominoId"`
	TopValue    int `bson:"top_value" json:"topValue"`
	BottomValue int `bson:"bottom_value" json:"bottomValue"`
}

type Proposition struct {
	Text              string `bson:"text" json:"text"`
	CorrectEvaluation string `bson:"correct_evaluation" json:"correctEvaluation,omitempty"`
}

type QuestionAnalytics struct {
	CorrectAnswerRate  float64 `bson:"correct_answer_rate" json:"correctAnswerRate"`
	HalfCorrectRate    float64 `bson:"half_correct_rate,omitempty" json:"halfCorrectRate,omitempty"`
	ReversedAnswerRate float64 `bson:"reversed_answer_rate,omitempty" json:"reversedAnswerRate,omitempty"`
	DontUnderstandRate float64 `bson:"dont_understand_rate,omitempty" json:"dontUnderstandRate,omitempty"`
	AverageTimeSpent   float64 `bson:"average_time_spent" json:"averageTimeSpent"`
	VisitCountAverage  float64 `bson:"visit_count_average" json:"visitCountAverage"`
}

// Question is a tagged union over the domino and proposition families, keyed by
// QuestionType. CorrectAnswer is set for domino/arrow questions, Propositions
// for multiple-choice questions.
type Question struct {
	ID             string            `bson:"_id,omitempty" json:"id"`
	TestID         string            `bson:"test_id" json:"testId"`
	QuestionType   string            `bson:"question_type" json:"questionType"`
	Title          string            `bson:"title,omitempty" json:"title,omitempty"`
	Instruction    string            `bson:"instruction" json:"instruction"`
	Difficulty     Difficulty        `bson:"difficulty" json:"difficulty"`
	QuestionNumber int               `bson:"question_number" json:"questionNumber"`
	IsActive       bool              `bson:"is_active" json:"isActive"`
	CorrectAnswer  *DominoValue      `bson:"correct_answer,omitempty" json:"correctAnswer,omitempty"`
	Propositions   []Proposition     `bson:"propositions,omitempty" json:"propositions,omitempty"`
	Analytics      QuestionAnalytics `bson:"analytics" json:"analytics"`
	CreatedAt      time.Time         `bson:"created_at,omitempty" json:"createdAt,omitempty"`
	UpdatedAt      time.Time         `bson:"updated_at,omitempty" json:"updatedAt,omitempty"`
}

// IsDominoFamily reports whether the question scores with the domino rules.
func (q *Question) IsDominoFamily() bool {
	return q.QuestionType == QuestionTypeDomino || q.QuestionType == QuestionTypeArrow
}

// MaxPoints is the contribution of this question to an attempt's maximum score:
// one point for a domino question, one per proposition for multiple choice.
func (q *Question) MaxPoints() int {
	if q.IsDominoFamily() {
		return 1
	}
	if q.QuestionType == QuestionTypeMultipleChoice {
		return len(q.Propositions)
	}
	return 0
}

// Sanitized returns a copy safe to show a candidate mid-attempt: the canonical
// answer and per-proposition evaluations are stripped.
func (q *Question) Sanitized() Question {
	out := *q
	out.CorrectAnswer = nil
	if len(q.Propositions) > 0 {
		props := make([]Proposition, len(q.Propositions))
		for i, p := range q.Propositions {
			props[i] = Proposition{Text: p.Text}
		}
		out.Propositions = props
	}
	return out
}

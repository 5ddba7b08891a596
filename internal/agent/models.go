// internal/agent/models.go
package agent

import (
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/exam-autofill/internal/exam"
)

// ActionType is the vocabulary of actions the calling agent can request.
type ActionType string

const (
	// -- Answer writes --
	ActionFillBlank            ActionType = "FILL_BLANK"             // Writes every blank of a fill-blank question.
	ActionSelectSingleChoice   ActionType = "SELECT_SINGLE_CHOICE"   // Selects one option.
	ActionSelectMultipleChoice ActionType = "SELECT_MULTIPLE_CHOICE" // Selects a set of options.
	ActionAnswerJudge          ActionType = "ANSWER_JUDGE"           // Answers a true/false question.

	// -- Status reads --
	ActionGetAllQuestionsStatus ActionType = "GET_ALL_QUESTIONS_STATUS" // Scans every question on the page.
	ActionGetQuestionStatus     ActionType = "GET_QUESTION_STATUS"      // Reads the state of one question.
)

// Action is one request from the calling agent.
type Action struct {
	ID        string          `json:"id"`
	Type      ActionType      `json:"type"`
	Params    json.RawMessage `json:"params,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// ObservationType categorizes what an action's result data describes.
type ObservationType string

const (
	ObservedAnswerWrite    ObservationType = "ANSWER_WRITE"    // An answer was registered on the page.
	ObservedQuestionStatus ObservationType = "QUESTION_STATUS" // The state of one question.
	ObservedExamStatus     ObservationType = "EXAM_STATUS"     // The state of every question on the page.
	ObservedSystemState    ObservationType = "SYSTEM_STATE"    // A failure outside the page itself.
)

// Result status values.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// ExecutionResult is the standardized outcome of an action.
type ExecutionResult struct {
	ActionID        string                 `json:"action_id,omitempty"`
	Status          string                 `json:"status"` // "success" or "failed"
	ObservationType ObservationType        `json:"observation_type"`
	Data            interface{}            `json:"data,omitempty"`
	ErrorCode       ErrorCode              `json:"error_code,omitempty"`
	ErrorDetails    map[string]interface{} `json:"error_details,omitempty"`
}

// Succeeded reports whether the action completed.
func (r *ExecutionResult) Succeeded() bool {
	return r != nil && r.Status == StatusSuccess
}

// -- Parameters --

// FillBlankParams are the parameters of FILL_BLANK. Answers may contain empty
// strings but the list itself is required.
type FillBlankParams struct {
	QID     exam.Identifier `json:"qid" validate:"required"`
	Answers []string        `json:"answers" validate:"required"`
	FrameID string          `json:"frame_id,omitempty"`
}

// SingleChoiceParams are the parameters of SELECT_SINGLE_CHOICE.
type SingleChoiceParams struct {
	QID    exam.Identifier `json:"qid" validate:"required"`
	Choice string          `json:"choice" validate:"required"`
}

// MultipleChoiceParams are the parameters of SELECT_MULTIPLE_CHOICE.
type MultipleChoiceParams struct {
	QID     exam.Identifier `json:"qid" validate:"required"`
	Choices []string        `json:"choices" validate:"required,min=1,dive,notblank"`
}

// JudgeParams are the parameters of ANSWER_JUDGE.
type JudgeParams struct {
	QID    exam.Identifier `json:"qid" validate:"required"`
	Answer *bool           `json:"answer" validate:"required"`
}

// QuestionStatusParams are the parameters of GET_QUESTION_STATUS.
type QuestionStatusParams struct {
	QID exam.Identifier `json:"qid" validate:"required"`
}

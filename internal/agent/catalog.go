// internal/agent/catalog.go
package agent

// ParamDescriptor documents one action parameter.
type ParamDescriptor struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// ActionDescriptor documents one action for the calling agent.
type ActionDescriptor struct {
	Type        ActionType        `json:"type"`
	Description string            `json:"description"`
	Params      []ParamDescriptor `json:"params"`
}

var qidParam = ParamDescriptor{
	Name:        "qid",
	Type:        "integer|string",
	Required:    true,
	Description: "Internal question id, or the 1-based position from the last full status scan.",
}

func examCatalog() []ActionDescriptor {
	return []ActionDescriptor{
		{
			Type:        ActionGetAllQuestionsStatus,
			Description: "Scan every question on the page and report its type and answer. Run this before addressing questions by position.",
			Params:      []ParamDescriptor{},
		},
		{
			Type:        ActionGetQuestionStatus,
			Description: "Report whether one question is answered and with what.",
			Params:      []ParamDescriptor{qidParam},
		},
		{
			Type:        ActionSelectSingleChoice,
			Description: "Select one option of a single-choice question. Selecting an already selected option changes nothing.",
			Params: []ParamDescriptor{
				qidParam,
				{Name: "choice", Type: "string", Required: true, Description: "Option token, e.g. \"A\"."},
			},
		},
		{
			Type:        ActionSelectMultipleChoice,
			Description: "Select every listed option of a multiple-choice question. Options already selected stay selected.",
			Params: []ParamDescriptor{
				qidParam,
				{Name: "choices", Type: "string[]", Required: true, Description: "Option tokens, e.g. [\"A\", \"C\"]."},
			},
		},
		{
			Type:        ActionAnswerJudge,
			Description: "Answer a true/false question.",
			Params: []ParamDescriptor{
				qidParam,
				{Name: "answer", Type: "boolean", Required: true, Description: "true or false."},
			},
		},
		{
			Type:        ActionFillBlank,
			Description: "Write the answers of a fill-blank question, one per blank in order. The number of answers must match the number of blanks.",
			Params: []ParamDescriptor{
				qidParam,
				{Name: "answers", Type: "string[]", Required: true, Description: "One answer per blank."},
				{Name: "frame_id", Type: "string", Required: false, Description: "Id of the iframe hosting the editors, when they are not in the top document."},
			},
		},
	}
}

// internal/exam/kind.go
package exam

import (
	"fmt"

	json "github.com/json-iterator/go"
)

// Kind is the question type as declared by the exam platform.
type Kind int

const (
	KindUnknown Kind = iota
	KindSingleChoice
	KindMultipleChoice
	KindJudge
	KindFillBlank
)

// inferenceOrder is the priority used when a container has no declared type
// and the kind has to be guessed from its visible text.
var inferenceOrder = []Kind{KindSingleChoice, KindMultipleChoice, KindJudge, KindFillBlank}

// Label returns the platform's own name for the kind, as found in the
// container's typename attribute.
func (k Kind) Label() string {
	switch k {
	case KindSingleChoice:
		return "单选题"
	case KindMultipleChoice:
		return "多选题"
	case KindJudge:
		return "判断题"
	case KindFillBlank:
		return "填空题"
	case KindUnknown:
		return "未知题型"
	}
	return "未知题型"
}

func (k Kind) String() string {
	switch k {
	case KindSingleChoice:
		return "single_choice"
	case KindMultipleChoice:
		return "multiple_choice"
	case KindJudge:
		return "judge"
	case KindFillBlank:
		return "fill_blank"
	case KindUnknown:
		return "unknown"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsChoice reports whether answers of this kind are registered by clicking
// option elements.
func (k Kind) IsChoice() bool {
	switch k {
	case KindSingleChoice, KindMultipleChoice, KindJudge:
		return true
	case KindFillBlank, KindUnknown:
		return false
	}
	return false
}

// ParseKind maps a platform label to a Kind. Labels it does not know map to
// KindUnknown.
func ParseKind(label string) Kind {
	for _, k := range inferenceOrder {
		if k.Label() == label {
			return k
		}
	}
	return KindUnknown
}

// MarshalJSON encodes the kind by its stable identifier.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts either the stable identifier or the platform label.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("question kind must be a string: %w", err)
	}
	for _, candidate := range append([]Kind{KindUnknown}, inferenceOrder...) {
		if candidate.String() == s {
			*k = candidate
			return nil
		}
	}
	*k = ParseKind(s)
	return nil
}

// kindLabels is handed to page scripts so that type detection on the page
// uses the same table as the Go side.
type kindLabels struct {
	Single   string   `json:"single"`
	Multiple string   `json:"multiple"`
	Judge    string   `json:"judge"`
	Fill     string   `json:"fill"`
	Unknown  string   `json:"unknown"`
	Priority []string `json:"priority"`
}

func pageKindLabels() kindLabels {
	priority := make([]string, 0, len(inferenceOrder))
	for _, k := range inferenceOrder {
		priority = append(priority, k.Label())
	}
	return kindLabels{
		Single:   KindSingleChoice.Label(),
		Multiple: KindMultipleChoice.Label(),
		Judge:    KindJudge.Label(),
		Fill:     KindFillBlank.Label(),
		Unknown:  KindUnknown.Label(),
		Priority: priority,
	}
}

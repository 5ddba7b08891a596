// internal/exam/answer.go
package exam

import (
	"bytes"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

// Answer is the recorded answer of one question. Fill-blank answers are an
// ordered list with one entry per blank; choice answers are a single token or
// several tokens joined by commas.
type Answer struct {
	Text   string
	Blanks []string
}

// ChoiceAnswer builds a choice answer from one or more option tokens.
func ChoiceAnswer(tokens ...string) Answer {
	return Answer{Text: strings.Join(tokens, ",")}
}

// BlankAnswer builds a fill-blank answer.
func BlankAnswer(blanks ...string) Answer {
	if blanks == nil {
		blanks = []string{}
	}
	return Answer{Blanks: blanks}
}

// IsBlanks reports whether the answer has the fill-blank shape.
func (a Answer) IsBlanks() bool {
	return a.Blanks != nil
}

// IsZero reports whether nothing was recorded.
func (a Answer) IsZero() bool {
	return a.Text == "" && len(a.Blanks) == 0
}

// Tokens splits a choice answer back into its option tokens.
func (a Answer) Tokens() []string {
	if a.IsBlanks() || a.Text == "" {
		return nil
	}
	return strings.Split(a.Text, ",")
}

func (a Answer) String() string {
	if a.IsBlanks() {
		return strings.Join(a.Blanks, " | ")
	}
	return a.Text
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.IsBlanks() {
		return json.Marshal(a.Blanks)
	}
	return json.Marshal(a.Text)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*a = Answer{}
		return nil
	case data[0] == '[':
		var blanks []string
		if err := json.Unmarshal(data, &blanks); err != nil {
			return fmt.Errorf("invalid fill-blank answer: %w", err)
		}
		*a = BlankAnswer(blanks...)
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid choice answer: %w", err)
		}
		*a = Answer{Text: s}
		return nil
	}
	return fmt.Errorf("answer must be a string or a list of strings, got %s", string(data))
}

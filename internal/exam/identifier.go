// internal/exam/identifier.go
package exam

import (
	"bytes"
	"fmt"
	"strconv"

	json "github.com/json-iterator/go"
)

// DefaultIDThreshold separates display indices (small numbers) from the
// platform's internal question ids. Ids observed on the platform are well above
// it, positions on a single page are well below it.
const DefaultIDThreshold = 1000

// Identifier is a caller supplied reference to a question. It is either an
// integer or a string and remembers which, because the two resolve through
// slightly different rules.
type Identifier struct {
	text  string
	num   int64
	isNum bool
}

// IntID builds an integer identifier.
func IntID(n int64) Identifier {
	return Identifier{num: n, isNum: true, text: strconv.FormatInt(n, 10)}
}

// StringID builds a string identifier.
func StringID(s string) Identifier {
	return Identifier{text: s}
}

// IsZero reports whether the identifier was never set.
func (id Identifier) IsZero() bool {
	return !id.isNum && id.text == ""
}

// String returns the identifier as the caller wrote it.
func (id Identifier) String() string {
	return id.text
}

// MarshalJSON keeps the original JSON shape (number or string).
func (id Identifier) MarshalJSON() ([]byte, error) {
	if id.isNum {
		return []byte(strconv.FormatInt(id.num, 10)), nil
	}
	return json.Marshal(id.text)
}

// UnmarshalJSON accepts a JSON integer or a JSON string.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = Identifier{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("invalid question identifier: %w", err)
		}
		*id = StringID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("question identifier must be an integer or a string, got %s", string(data))
	}
	*id = IntID(n)
	return nil
}

// isASCIIDigits mirrors the "numeric string" test used for position lookups.
// Signs, spaces and non-ASCII digits do not count.
func isASCIIDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

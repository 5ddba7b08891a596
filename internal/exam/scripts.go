// internal/exam/scripts.go
package exam

import (
	"embed"
	"fmt"
	"strings"

	json "github.com/json-iterator/go"
)

//go:embed scripts/*.js
var scriptFS embed.FS

// scriptName identifies one of the embedded page scripts.
type scriptName string

const (
	scriptBlankCount     scriptName = "blank_count"
	scriptBlankFill      scriptName = "blank_fill"
	scriptChoose         scriptName = "choose"
	scriptQuestionStatus scriptName = "question_status"
	scriptScanStatus     scriptName = "scan_status"
)

const scriptLibrary = "lib"

func loadScript(name string) (string, error) {
	src, err := scriptFS.ReadFile("scripts/" + name + ".js")
	if err != nil {
		return "", fmt.Errorf("failed to read embedded script %s: %w", name, err)
	}
	if len(src) == 0 {
		return "", fmt.Errorf("embedded script %s is empty", name)
	}
	return strings.TrimSpace(string(src)), nil
}

// buildScript produces a self-contained expression that runs the named script
// with args. Values only ever reach the page as JSON, never spliced into the
// script text.
func buildScript(name scriptName, args interface{}) (string, error) {
	lib, err := loadScript(scriptLibrary)
	if err != nil {
		return "", err
	}
	body, err := loadScript(string(name))
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode arguments for %s: %w", name, err)
	}

	var b strings.Builder
	b.Grow(len(lib) + len(body) + len(payload) + 64)
	b.WriteString("(function (args) {\n")
	b.WriteString(lib)
	b.WriteString("\nreturn (")
	b.WriteString(body)
	b.WriteString(")(args);\n})(")
	b.Write(payload)
	b.WriteString(")")
	return b.String(), nil
}

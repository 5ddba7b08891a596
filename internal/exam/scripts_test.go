// internal/exam/scripts_test.go
package exam

import (
	"strings"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildScript(t *testing.T) {
	t.Parallel()

	for _, name := range []scriptName{scriptBlankCount, scriptBlankFill, scriptChoose, scriptQuestionStatus, scriptScanStatus} {
		name := name
		t.Run(string(name), func(t *testing.T) {
			t.Parallel()

			script, err := buildScript(name, map[string]string{"qid": "2001"})
			require.NoError(t, err)

			assert.True(t, strings.HasPrefix(script, "(function (args) {"))
			assert.Contains(t, script, "function findContainer(", "the shared helpers should be included")
			assert.Equal(t, map[string]interface{}{"qid": "2001"}, scriptArgs(t, script))
		})
	}
}

func TestBuildScript_ValuesAreNotSpliced(t *testing.T) {
	t.Parallel()

	hostile := "\"); alert('x'); (\"\n\\"
	script, err := buildScript(scriptBlankFill, map[string]string{"value": hostile})
	require.NoError(t, err)

	assert.NotContains(t, script, "alert('x'); (\"\n", "raw newlines and quotes must be escaped")
	assert.Equal(t, hostile, scriptArgs(t, script)["value"])
}

func TestBuildScript_UnknownScript(t *testing.T) {
	t.Parallel()

	_, err := buildScript(scriptName("missing"), nil)
	assert.Error(t, err)
}

// scriptArgs decodes the JSON arguments appended by buildScript.
func scriptArgs(t *testing.T, script string) map[string]interface{} {
	t.Helper()
	i := strings.LastIndex(script, "})(")
	require.NotEqual(t, -1, i, "script has no argument list")
	payload := strings.TrimSuffix(script[i+len("})("):], ")")

	var args map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(payload), &args))
	return args
}

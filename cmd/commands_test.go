// File: cmd/commands_test.go
package cmd

import (
	"os"
	"path/filepath"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/xkilldash9x/exam-autofill/internal/report"
)

const scanResponse = `[
  {"index": 1, "displayNumber": "1.", "qid": "88231", "elementId": "question88231", "type": "单选题", "answered": true, "answer": "B"},
  {"index": 2, "displayNumber": "2.", "qid": "88232", "elementId": "question88232", "type": "填空题", "answered": false},
  {"index": 3, "displayNumber": "3.", "qid": "88233", "elementId": "question88233", "type": "判断题", "answered": false, "hasVisualSelection": true}
]`

func TestActCmd_SingleChoice(t *testing.T) {
	src := useFakeBrowser(t, `{"ok": true, "clicked": 1}`)

	out, err := executeCommand(t, "act", "select_single_choice", "--no-scan", "--params", `{"qid": 88232, "choice": "C"}`)
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	assert.Equal(t, "success", result["status"])
	assert.Equal(t, "ANSWER_WRITE", result["observation_type"])
	assert.Equal(t, 1, src.page.evaluations())
	assert.True(t, src.closed, "browser connection should be released")
}

func TestActCmd_PositionResolvesAfterScan(t *testing.T) {
	src := useFakeBrowser(t, scanResponse, `{"ok": true, "clicked": 1}`)

	out, err := executeCommand(t, "act", "ANSWER_JUDGE", "--params", `{"qid": 3, "answer": true}`)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"qid": "88233"`)
	assert.Equal(t, 2, src.page.evaluations())
}

func TestActCmd_Failures(t *testing.T) {
	t.Run("unknown action", func(t *testing.T) {
		useFakeBrowser(t)
		_, err := executeCommand(t, "act", "submit_exam", "--no-scan")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown action type "submit_exam"`)
		assert.Contains(t, err.Error(), "fill_blank")
	})

	t.Run("malformed params", func(t *testing.T) {
		src := useFakeBrowser(t)
		_, err := executeCommand(t, "act", "fill_blank", "--params", `{"qid":`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not valid JSON")
		assert.Zero(t, src.page.evaluations())
	})

	t.Run("failed action prints the result and exits non-zero", func(t *testing.T) {
		useFakeBrowser(t, `{"frameFound": true, "count": 2}`)
		out, err := executeCommand(t, "act", "fill_blank", "--no-scan", "--params", `{"qid": 88232, "answers": ["only one"]}`)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BLANK_COUNT_MISMATCH")
		assert.Contains(t, out, `"error_code": "BLANK_COUNT_MISMATCH"`)
	})

	t.Run("missing argument", func(t *testing.T) {
		useFakeBrowser(t)
		_, err := executeCommand(t, "act")
		assert.Error(t, err)
	})
}

func TestStatusCmd_Table(t *testing.T) {
	useFakeBrowser(t, scanResponse)

	out, err := executeCommand(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "ANSWERED")
	assert.Regexp(t, `1\s+1\.\s+88231\s+单选题\s+yes\s+B`, out)
	assert.Regexp(t, `3\s+3\.\s+88233\s+判断题\s+marked`, out)
	assert.Contains(t, out, "1 of 3 questions answered")
}

func TestStatusCmd_JSON(t *testing.T) {
	useFakeBrowser(t, scanResponse)

	out, err := executeCommand(t, "status", "--json")
	require.NoError(t, err)

	var scan struct {
		Total     int `json:"total"`
		Questions []struct {
			QID string `json:"qid"`
		} `json:"questions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &scan), out)
	assert.Equal(t, 3, scan.Total)
	assert.Equal(t, "88232", scan.Questions[1].QID)
}

func TestStatusCmd_Workbook(t *testing.T) {
	useFakeBrowser(t, scanResponse)
	path := filepath.Join(t.TempDir(), "status.xlsx")

	_, err := executeCommand(t, "status", "--xlsx", path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestStatusCmd_SingleQuestion(t *testing.T) {
	// The priming scan records question 1 as answered, so its status comes
	// from the local cache without another page evaluation.
	src := useFakeBrowser(t, scanResponse)

	out, err := executeCommand(t, "status", "--qid", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"source": "local_cache"`)
	assert.Contains(t, out, `"qid": "88231"`)
	assert.Equal(t, 1, src.page.evaluations())
}

func TestStatusCmd_ScanFailure(t *testing.T) {
	useFakeBrowser(t, `[]`)

	_, err := executeCommand(t, "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page scan failed")
}

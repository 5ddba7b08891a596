// internal/agent/executors_test.go
package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/exam-autofill/internal/exam"
)

// scriptedPage answers evaluations from a queue of JSON documents.
type scriptedPage struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (p *scriptedPage) Evaluate(ctx context.Context, script string, out interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return p.err
	}
	if len(p.responses) == 0 {
		return errors.New("unexpected evaluation")
	}
	raw := p.responses[0]
	p.responses = p.responses[1:]
	return json.Unmarshal([]byte(raw), out)
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) ObserveAction(action string, status string, elapsed time.Duration) {
	m.Called(action, status, elapsed)
}

func newTestRegistry(t *testing.T, page *scriptedPage, opts ...RegistryOption) *ExecutorRegistry {
	logger := zaptest.NewLogger(t)
	provider := func(ctx context.Context) (exam.Page, error) { return page, nil }
	helper := exam.NewHelper(logger, exam.NewState(exam.DefaultIDThreshold), provider)
	return NewExecutorRegistry(logger, helper, opts...)
}

func action(t ActionType, params string) Action {
	return Action{Type: t, Params: json.RawMessage(params)}
}

func TestRegistry_SingleChoice(t *testing.T) {
	page := &scriptedPage{responses: []string{`{"ok": true, "clicked": 1, "alreadySelected": 0}`}}
	r := newTestRegistry(t, page)

	res, err := r.Execute(context.Background(), action(ActionSelectSingleChoice, `{"qid": 2001, "choice": "A"}`))
	require.NoError(t, err)
	require.True(t, res.Succeeded(), "details: %v", res.ErrorDetails)
	assert.Equal(t, ObservedAnswerWrite, res.ObservationType)
	assert.NotEmpty(t, res.ActionID, "an action id should be assigned")

	data, ok := res.Data.(*exam.ChoiceResult)
	require.True(t, ok)
	assert.Equal(t, "2001", data.QID)
	assert.Equal(t, "A", data.Answer.Text)
}

func TestRegistry_MultipleChoiceAndJudge(t *testing.T) {
	page := &scriptedPage{responses: []string{
		`{"ok": true, "clicked": 2}`,
		`{"ok": true, "clicked": 1}`,
	}}
	r := newTestRegistry(t, page)

	res, err := r.Execute(context.Background(), action(ActionSelectMultipleChoice, `{"qid": "2003", "choices": ["A", "C"]}`))
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	assert.Equal(t, "A,C", res.Data.(*exam.ChoiceResult).Answer.Text)

	res, err = r.Execute(context.Background(), action(ActionAnswerJudge, `{"qid": 2004, "answer": false}`))
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	assert.Equal(t, "false", res.Data.(*exam.ChoiceResult).Answer.Text)
}

func TestRegistry_InvalidParameters(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		field  string
	}{
		{"missing qid", action(ActionSelectSingleChoice, `{"choice": "A"}`), "qid"},
		{"missing choice", action(ActionSelectSingleChoice, `{"qid": 2001}`), "choice"},
		{"empty choices", action(ActionSelectMultipleChoice, `{"qid": 2001, "choices": []}`), "choices"},
		{"blank choice entry", action(ActionSelectMultipleChoice, `{"qid": 2001, "choices": ["A", ""]}`), "choices[1]"},
		{"whitespace choice entry", action(ActionSelectMultipleChoice, `{"qid": 2001, "choices": ["  "]}`), "choices[0]"},
		{"missing judge answer", action(ActionAnswerJudge, `{"qid": 2001}`), "answer"},
		{"missing answers", action(ActionFillBlank, `{"qid": 2005}`), "answers"},
		{"no params at all", Action{Type: ActionGetQuestionStatus}, "qid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &scriptedPage{}
			r := newTestRegistry(t, page)

			res, err := r.Execute(context.Background(), tt.action)
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, res.Status)
			assert.Equal(t, ErrCodeInvalidParameters, res.ErrorCode)

			fields, ok := res.ErrorDetails["fields"].([]FieldError)
			require.True(t, ok, "validation failures should list fields")
			require.NotEmpty(t, fields)
			assert.Equal(t, tt.field, fields[0].Field)
			assert.Zero(t, page.calls, "the page must not be touched")
		})
	}
}

func TestRegistry_MalformedParameters(t *testing.T) {
	r := newTestRegistry(t, &scriptedPage{})

	res, err := r.Execute(context.Background(), action(ActionAnswerJudge, `{"qid": 2001, "answer": "maybe"}`))
	require.NoError(t, err)
	assert.Equal(t, ErrCodeInvalidParameters, res.ErrorCode)
	assert.Contains(t, res.ErrorDetails["message"], "ANSWER_JUDGE")
}

func TestRegistry_FillBlankEmptyStringsAllowed(t *testing.T) {
	page := &scriptedPage{responses: []string{
		`{"frameFound": true, "count": 2}`,
		`{"ok": true}`,
		`{"ok": true}`,
	}}
	r := newTestRegistry(t, page)

	res, err := r.Execute(context.Background(), action(ActionFillBlank, `{"qid": 2005, "answers": ["", "y"]}`))
	require.NoError(t, err)
	require.True(t, res.Succeeded(), "details: %v", res.ErrorDetails)
	assert.Equal(t, 2, res.Data.(*exam.FillBlankResult).Filled)
}

func TestRegistry_ExamErrorsKeepTheirCode(t *testing.T) {
	t.Run("count mismatch", func(t *testing.T) {
		page := &scriptedPage{responses: []string{`{"frameFound": true, "count": 3}`}}
		r := newTestRegistry(t, page)

		res, err := r.Execute(context.Background(), action(ActionFillBlank, `{"qid": 2005, "answers": ["x", "y"]}`))
		require.NoError(t, err)
		assert.Equal(t, ErrCodeBlankCountMismatch, res.ErrorCode)
	})

	t.Run("partial fill reports the blank", func(t *testing.T) {
		page := &scriptedPage{responses: []string{
			`{"frameFound": true, "count": 2}`,
			`{"ok": true}`,
			`{"ok": false, "reason": "destroyed"}`,
		}}
		r := newTestRegistry(t, page)

		res, err := r.Execute(context.Background(), action(ActionFillBlank, `{"qid": 2005, "answers": ["x", "y"]}`))
		require.NoError(t, err)
		assert.Equal(t, ErrCodeScriptFailure, res.ErrorCode)
		assert.Equal(t, 2, res.ErrorDetails["blank"])
	})

	t.Run("unresolved position", func(t *testing.T) {
		r := newTestRegistry(t, &scriptedPage{})
		res, err := r.Execute(context.Background(), action(ActionSelectSingleChoice, `{"qid": 3, "choice": "A"}`))
		require.NoError(t, err)
		assert.Equal(t, ErrCodeQuestionUnresolved, res.ErrorCode)
	})

	t.Run("page failure", func(t *testing.T) {
		r := newTestRegistry(t, &scriptedPage{err: errors.New("websocket closed")})
		res, err := r.Execute(context.Background(), action(ActionGetAllQuestionsStatus, ``))
		require.NoError(t, err)
		assert.Equal(t, ErrCodeScriptFailure, res.ErrorCode)
		assert.Equal(t, ObservedExamStatus, res.ObservationType)
	})
}

func TestRegistry_StatusActions(t *testing.T) {
	page := &scriptedPage{responses: []string{
		`[{"index": 1, "qid": "2001", "type": "单选题", "answered": true, "answer": "B"}]`,
	}}
	r := newTestRegistry(t, page)

	res, err := r.Execute(context.Background(), action(ActionGetAllQuestionsStatus, `{}`))
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	assert.Equal(t, 1, res.Data.(*exam.ScanResult).Total)

	// Served from the cache filled by the scan.
	res, err = r.Execute(context.Background(), action(ActionGetQuestionStatus, `{"qid": 1}`))
	require.NoError(t, err)
	require.True(t, res.Succeeded())
	status := res.Data.(*exam.QuestionStatus)
	assert.Equal(t, exam.SourceLocalCache, status.Source)
	assert.Equal(t, "2001", status.QID)
	assert.Equal(t, 1, page.calls)
}

func TestRegistry_UnknownAction(t *testing.T) {
	r := newTestRegistry(t, &scriptedPage{})

	res, err := r.Execute(context.Background(), Action{Type: "NAVIGATE"})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, ErrCodeUnknownAction, res.ErrorCode)
}

func TestRegistry_PanicIsContained(t *testing.T) {
	r := newTestRegistry(t, &scriptedPage{})
	r.register(panicExecutor{}, "EXPLODE")

	res, err := r.Execute(context.Background(), Action{Type: "EXPLODE"})
	require.NoError(t, err)
	assert.Equal(t, ErrCodeExecutorPanic, res.ErrorCode)
	assert.Contains(t, res.ErrorDetails["message"], "boom")

	// The registry is still usable afterwards.
	res, err = r.Execute(context.Background(), Action{Type: "NAVIGATE"})
	require.NoError(t, err)
	assert.Equal(t, ErrCodeUnknownAction, res.ErrorCode)
}

type panicExecutor struct{}

func (panicExecutor) Execute(ctx context.Context, action Action) (*ExecutionResult, error) {
	panic("boom")
}

func TestRegistry_CancelledContext(t *testing.T) {
	page := &scriptedPage{}
	r := newTestRegistry(t, page)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := r.Execute(ctx, action(ActionGetAllQuestionsStatus, ``))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Zero(t, page.calls)
}

func TestRegistry_RecordsOutcomes(t *testing.T) {
	rec := new(mockRecorder)
	rec.On("ObserveAction", "SELECT_SINGLE_CHOICE", StatusSuccess, mock.AnythingOfType("time.Duration")).Once()
	rec.On("ObserveAction", "UNKNOWN", StatusFailed, mock.AnythingOfType("time.Duration")).Once()

	page := &scriptedPage{responses: []string{`{"ok": true, "clicked": 1}`}}
	r := newTestRegistry(t, page, WithRecorder(rec))

	_, err := r.Execute(context.Background(), action(ActionSelectSingleChoice, `{"qid": 2001, "choice": "A"}`))
	require.NoError(t, err)
	_, err = r.Execute(context.Background(), Action{Type: "UNKNOWN"})
	require.NoError(t, err)

	rec.AssertExpectations(t)
}

func TestRegistry_SerializesExecutions(t *testing.T) {
	r := newTestRegistry(t, &scriptedPage{})
	tracker := &overlapTracker{}
	r.register(tracker, "TRACKED")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Execute(context.Background(), Action{Type: "TRACKED"})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), tracker.maxActive)
}

type overlapTracker struct {
	mu        sync.Mutex
	active    int32
	maxActive int32
}

func (p *overlapTracker) Execute(ctx context.Context, action Action) (*ExecutionResult, error) {
	p.mu.Lock()
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	p.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	p.mu.Lock()
	p.active--
	p.mu.Unlock()
	return &ExecutionResult{Status: StatusSuccess}, nil
}

func TestRegistry_CatalogCoversEveryAction(t *testing.T) {
	r := newTestRegistry(t, &scriptedPage{})

	described := make(map[ActionType]bool)
	for _, d := range r.Descriptors() {
		described[d.Type] = true
		assert.NotEmpty(t, d.Description)
	}
	for _, typ := range r.Types() {
		assert.True(t, described[typ], "%s is not in the catalog", typ)
	}
	assert.Len(t, r.Types(), 6)
}

func TestRegistry_ParseActionType(t *testing.T) {
	r := newTestRegistry(t, &scriptedPage{})

	typ, ok := r.ParseActionType(" select_single_choice ")
	assert.True(t, ok)
	assert.Equal(t, ActionSelectSingleChoice, typ)

	_, ok = r.ParseActionType("click")
	assert.False(t, ok)
}

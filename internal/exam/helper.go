// internal/exam/helper.go
package exam

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Page is the exam tab as the helper sees it.
type Page interface {
	// Evaluate runs script in the page, waits for a returned promise to settle
	// and decodes the JSON result into out. A null or undefined result leaves
	// out untouched.
	Evaluate(ctx context.Context, script string, out interface{}) error
}

// PageProvider fetches the currently active exam page.
type PageProvider func(ctx context.Context) (Page, error)

// ScriptObserver is told about every script evaluation and its outcome.
type ScriptObserver func(script string, err error)

// Source values reported by QuestionStatus.
const (
	SourceLocalCache = "local_cache"
	SourceNotFound   = "not_found"
	SourceEditor     = "editor"
	SourceVisualMark = "visual_mark"
)

const (
	judgeTrueToken  = "true"
	judgeFalseToken = "false"
)

// Helper performs the answer-filling and status operations against one exam
// page. All operations share the caches held in its State.
//
// Helper does no locking of its own. Callers run one operation at a time.
type Helper struct {
	logger  *zap.Logger
	state   *State
	pages   PageProvider
	observe ScriptObserver
}

// HelperOption configures a Helper.
type HelperOption func(*Helper)

// WithScriptObserver installs a hook called after every page script.
func WithScriptObserver(o ScriptObserver) HelperOption {
	return func(h *Helper) { h.observe = o }
}

// NewHelper creates a Helper. pages is consulted whenever an operation is
// called without an explicit page; it may be nil if callers always pass one.
func NewHelper(logger *zap.Logger, state *State, pages PageProvider, opts ...HelperOption) *Helper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if state == nil {
		state = NewState(DefaultIDThreshold)
	}
	h := &Helper{
		logger: logger.Named("exam_helper"),
		state:  state,
		pages:  pages,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State exposes the caches shared by the helper's operations.
func (h *Helper) State() *State {
	return h.state
}

// -- Fill blank --

// FillBlankRequest addresses the blanks of one fill-blank question.
type FillBlankRequest struct {
	QID     Identifier
	Answers []string
	// FrameID is the id of the iframe whose document hosts the editors. Empty
	// means the top document.
	FrameID string
}

// FillBlankResult reports a completed fill.
type FillBlankResult struct {
	QID    string `json:"qid"`
	Filled int    `json:"filled"`
}

type blankCount struct {
	FrameFound bool `json:"frameFound"`
	Count      int  `json:"count"`
}

type scriptOutcome struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
}

// FillBlank writes answers into the question's blanks in order. The number of
// answers must equal the number of blanks on the page. A failed write stops
// the fill; blanks written before it keep their new content.
//
// Unlike the choice operations, FillBlank leaves the answered set and the
// answer cache alone. Fill-blank status is always read back from the editors.
func (h *Helper) FillBlank(ctx context.Context, page Page, req FillBlankRequest) (*FillBlankResult, error) {
	qid, ok := h.state.Resolve(req.QID)
	if !ok {
		return nil, h.unresolved(req.QID)
	}
	page, err := h.page(ctx, page)
	if err != nil {
		return nil, err
	}

	var count blankCount
	if err := h.run(ctx, page, scriptBlankCount, map[string]string{
		"qid":   qid,
		"frame": req.FrameID,
	}, &count); err != nil {
		return nil, err
	}
	if req.FrameID != "" && !count.FrameFound {
		return nil, newError(ErrCodeNotFound, "frame %q not found", req.FrameID)
	}
	if count.Count == 0 {
		return nil, newError(ErrCodeNotFound, "no blank fields found for question %s", qid)
	}
	if count.Count != len(req.Answers) {
		return nil, newError(ErrCodeCountMismatch,
			"question %s has %d blanks but %d answers were given", qid, count.Count, len(req.Answers))
	}

	for i, value := range req.Answers {
		blank := i + 1
		editorID := fmt.Sprintf("answerEditor%s%d", qid, blank)

		var outcome scriptOutcome
		if err := h.run(ctx, page, scriptBlankFill, map[string]string{
			"frame":    req.FrameID,
			"editorId": editorID,
			"value":    value,
		}, &outcome); err != nil {
			err.Blank = blank
			return nil, err
		}
		if !outcome.OK {
			reason := outcome.Reason
			if reason == "" {
				reason = "editor rejected the content"
			}
			e := newError(ErrCodeScript, "failed to fill blank %d of question %s: %s", blank, qid, reason)
			e.Blank = blank
			return nil, e
		}
	}

	h.logger.Info("Filled blanks.", zap.String("qid", qid), zap.Int("count", len(req.Answers)))
	return &FillBlankResult{QID: qid, Filled: len(req.Answers)}, nil
}

// -- Choice questions --

// ChoiceResult reports a completed choice or judge answer.
type ChoiceResult struct {
	QID             string `json:"qid"`
	Kind            Kind   `json:"kind"`
	Answer          Answer `json:"answer"`
	Clicked         int    `json:"clicked"`
	AlreadySelected int    `json:"alreadySelected"`
}

type chooseOutcome struct {
	OK              bool   `json:"ok"`
	Detail          string `json:"detail"`
	Clicked         int    `json:"clicked"`
	AlreadySelected int    `json:"alreadySelected"`
}

// SelectSingleChoice selects one option of a single-choice question.
func (h *Helper) SelectSingleChoice(ctx context.Context, page Page, id Identifier, choice string) (*ChoiceResult, error) {
	return h.choose(ctx, page, id, KindSingleChoice, []string{choice})
}

// SelectMultipleChoice selects every listed option of a multiple-choice
// question, leaving options that are already selected untouched.
func (h *Helper) SelectMultipleChoice(ctx context.Context, page Page, id Identifier, choices []string) (*ChoiceResult, error) {
	tokens := dedupeTokens(choices)
	if len(tokens) == 0 {
		return nil, newError(ErrCodeEmptyAnswer, "no option tokens given for question %s", id.String())
	}
	return h.choose(ctx, page, id, KindMultipleChoice, tokens)
}

// AnswerJudge answers a true/false question.
func (h *Helper) AnswerJudge(ctx context.Context, page Page, id Identifier, answer bool) (*ChoiceResult, error) {
	token := judgeFalseToken
	if answer {
		token = judgeTrueToken
	}
	return h.choose(ctx, page, id, KindJudge, []string{token})
}

func (h *Helper) choose(ctx context.Context, page Page, id Identifier, kind Kind, tokens []string) (*ChoiceResult, error) {
	qid, ok := h.state.Resolve(id)
	if !ok {
		return nil, h.unresolved(id)
	}
	page, err := h.page(ctx, page)
	if err != nil {
		return nil, err
	}

	var outcome chooseOutcome
	if err := h.run(ctx, page, scriptChoose, map[string]interface{}{
		"qid":    qid,
		"tokens": tokens,
	}, &outcome); err != nil {
		return nil, err
	}
	if !outcome.OK {
		detail := outcome.Detail
		if detail == "" {
			detail = fmt.Sprintf("option for question %s not found", qid)
		}
		return nil, newError(ErrCodeNotFound, "%s", detail)
	}

	answer := ChoiceAnswer(tokens...)
	h.state.RecordAnswer(qid, answer)
	h.logger.Info("Answered question.",
		zap.String("qid", qid),
		zap.Stringer("kind", kind),
		zap.String("answer", answer.Text),
		zap.Int("clicked", outcome.Clicked),
		zap.Int("already_selected", outcome.AlreadySelected))

	return &ChoiceResult{
		QID:             qid,
		Kind:            kind,
		Answer:          answer,
		Clicked:         outcome.Clicked,
		AlreadySelected: outcome.AlreadySelected,
	}, nil
}

// dedupeTokens drops repeated and empty tokens, keeping first occurrences in
// order.
func dedupeTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// -- Status --

// QuestionStatus is the answer state of a single question.
type QuestionStatus struct {
	QID                string  `json:"qid"`
	Type               string  `json:"type,omitempty"`
	Kind               Kind    `json:"kind"`
	Found              bool    `json:"found"`
	Answered           bool    `json:"answered"`
	Answer             *Answer `json:"answer"`
	// Source is empty while the question has no answer.
	Source             string  `json:"source,omitempty"`
	HasVisualSelection bool    `json:"hasVisualSelection"`
}

type questionStatusOutcome struct {
	Found              bool    `json:"found"`
	Type               string  `json:"type"`
	Answered           bool    `json:"answered"`
	Answer             *Answer `json:"answer"`
	Source             string  `json:"source"`
	HasVisualSelection bool    `json:"hasVisualSelection"`
}

// QuestionStatus reports whether a question is answered. Questions already in
// the answered set are served from the cache without touching the page. A
// question that is not on the page is reported with source "not_found" and no
// error.
func (h *Helper) QuestionStatus(ctx context.Context, page Page, id Identifier) (*QuestionStatus, error) {
	qid, ok := h.state.Resolve(id)
	if !ok {
		// A position unknown to the index is looked up as written.
		qid = id.String()
	}

	if h.state.IsAnswered(qid) {
		cached, _ := h.state.CachedAnswer(qid)
		return &QuestionStatus{
			QID:      qid,
			Found:    true,
			Answered: true,
			Answer:   &cached,
			Source:   SourceLocalCache,
		}, nil
	}

	page, err := h.page(ctx, page)
	if err != nil {
		return nil, err
	}

	var outcome *questionStatusOutcome
	if err := h.run(ctx, page, scriptQuestionStatus, map[string]interface{}{
		"qid":    qid,
		"labels": pageKindLabels(),
	}, &outcome); err != nil {
		return nil, err
	}
	if outcome == nil || !outcome.Found {
		return &QuestionStatus{QID: qid, Source: SourceNotFound}, nil
	}

	status := &QuestionStatus{
		QID:                qid,
		Type:               outcome.Type,
		Kind:               ParseKind(outcome.Type),
		Found:              true,
		HasVisualSelection: outcome.HasVisualSelection,
	}
	if outcome.Answered && outcome.Answer != nil && !outcome.Answer.IsZero() {
		status.Answered = true
		status.Answer = outcome.Answer
		status.Source = outcome.Source
		h.state.RecordAnswer(qid, *outcome.Answer)
	}
	return status, nil
}

// QuestionSummary is one entry of a full-page scan.
type QuestionSummary struct {
	Index              int     `json:"index"`
	DisplayNumber      string  `json:"displayNumber"`
	QID                string  `json:"qid"`
	ElementID          string  `json:"elementId"`
	Type               string  `json:"type"`
	Kind               Kind    `json:"kind"`
	Answered           bool    `json:"answered"`
	Answer             *Answer `json:"answer"`
	HasVisualSelection bool    `json:"hasVisualSelection"`
}

// ScanResult is the outcome of AllQuestionsStatus.
type ScanResult struct {
	Total     int               `json:"total"`
	Questions []QuestionSummary `json:"questions"`
}

// AnsweredCount returns how many scanned questions are answered.
func (r *ScanResult) AnsweredCount() int {
	n := 0
	for _, q := range r.Questions {
		if q.Answered {
			n++
		}
	}
	return n
}

// AllQuestionsStatus scans every question on the page in document order. The
// scan replaces the position index, so it must run before questions can be
// addressed by position, and records every answered question in the caches.
func (h *Helper) AllQuestionsStatus(ctx context.Context, page Page) (*ScanResult, error) {
	page, err := h.page(ctx, page)
	if err != nil {
		return nil, err
	}

	var items []QuestionSummary
	if err := h.run(ctx, page, scriptScanStatus, map[string]interface{}{
		"labels": pageKindLabels(),
	}, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, newError(ErrCodeScript, "page scan returned no questions")
	}

	index := make(map[int64]string, len(items))
	for i := range items {
		q := &items[i]
		if q.DisplayNumber == "" {
			q.DisplayNumber = fmt.Sprintf("question %d", q.Index)
		}
		q.Kind = ParseKind(q.Type)
		if q.Answer == nil || q.Answer.IsZero() {
			q.Answered = false
		}
		if !q.Answered {
			q.Answer = nil
		}
		if q.Index > 0 && q.QID != "" {
			index[int64(q.Index)] = q.QID
		}
		if q.Answered && q.QID != "" {
			h.state.RecordAnswer(q.QID, *q.Answer)
		}
	}
	h.state.ReplaceIndex(index)

	result := &ScanResult{Total: len(items), Questions: items}
	h.logger.Info("Scanned exam page.",
		zap.Int("total", result.Total),
		zap.Int("answered", result.AnsweredCount()))
	return result, nil
}

// -- plumbing --

func (h *Helper) page(ctx context.Context, page Page) (Page, error) {
	if page != nil {
		return page, nil
	}
	if h.pages == nil {
		return nil, newError(ErrCodePageUnavailable, "no exam page available")
	}
	p, err := h.pages(ctx)
	if err != nil {
		return nil, wrapError(ErrCodePageUnavailable, err, "failed to get the active exam page")
	}
	if p == nil {
		return nil, newError(ErrCodePageUnavailable, "no exam page available")
	}
	return p, nil
}

func (h *Helper) run(ctx context.Context, page Page, name scriptName, args interface{}, out interface{}) *Error {
	script, err := buildScript(name, args)
	if err != nil {
		return wrapError(ErrCodeScript, err, "failed to build %s script", name)
	}
	err = page.Evaluate(ctx, script, out)
	if h.observe != nil {
		h.observe(string(name), err)
	}
	if err != nil {
		h.logger.Debug("Page script failed.", zap.String("script", string(name)), zap.Error(err))
		return wrapError(ErrCodeScript, err, "%s script failed", name)
	}
	return nil
}

func (h *Helper) unresolved(id Identifier) *Error {
	if h.state.IndexSize() == 0 {
		return newError(ErrCodeUnresolved,
			"question %q is not a known question; run a full status scan before addressing questions by position", id.String())
	}
	return newError(ErrCodeUnresolved, "question %q is not a known question", id.String())
}

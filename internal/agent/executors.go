// internal/agent/executors.go
package agent

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/exam-autofill/internal/exam"
)

// ActionExecutor runs actions of the types it was registered for.
type ActionExecutor interface {
	Execute(ctx context.Context, action Action) (*ExecutionResult, error)
}

// Recorder receives the outcome of every dispatched action.
type Recorder interface {
	ObserveAction(action string, status string, elapsed time.Duration)
}

// -- Executor Registry --

// ExecutorRegistry validates, dispatches and serializes actions. Only one
// action runs at a time: the exam caches and the page itself assume
// sequential use.
type ExecutorRegistry struct {
	logger    *zap.Logger
	executors map[ActionType]ActionExecutor
	catalog   []ActionDescriptor
	recorder  Recorder

	mu sync.Mutex
}

// RegistryOption configures an ExecutorRegistry.
type RegistryOption func(*ExecutorRegistry)

// WithRecorder reports every action outcome to rec.
func WithRecorder(rec Recorder) RegistryOption {
	return func(r *ExecutorRegistry) { r.recorder = rec }
}

// NewExecutorRegistry creates a registry serving the exam actions through
// helper.
func NewExecutorRegistry(logger *zap.Logger, helper *exam.Helper, opts ...RegistryOption) *ExecutorRegistry {
	r := &ExecutorRegistry{
		logger:    logger.Named("executor_registry"),
		executors: make(map[ActionType]ActionExecutor),
	}
	for _, opt := range opts {
		opt(r)
	}

	examExec := NewExamExecutor(logger, helper)
	r.register(examExec, examExec.Types()...)
	r.catalog = examCatalog()
	return r
}

// register associates an executor with one or more action types.
func (r *ExecutorRegistry) register(exec ActionExecutor, types ...ActionType) {
	for _, t := range types {
		r.executors[t] = exec
	}
}

// Types lists the registered action types in lexical order.
func (r *ExecutorRegistry) Types() []ActionType {
	out := make([]ActionType, 0, len(r.executors))
	for t := range r.executors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Descriptors returns the action catalog shown to the calling agent.
func (r *ExecutorRegistry) Descriptors() []ActionDescriptor {
	out := make([]ActionDescriptor, len(r.catalog))
	copy(out, r.catalog)
	return out
}

// ParseActionType matches name against the registered types, ignoring case.
func (r *ExecutorRegistry) ParseActionType(name string) (ActionType, bool) {
	t := ActionType(strings.ToUpper(strings.TrimSpace(name)))
	_, ok := r.executors[t]
	return t, ok
}

// Execute runs the action and always returns a result. Handler failures,
// unknown types and panics are all reported as failed results; the error
// return is reserved for a cancelled context.
func (r *ExecutorRegistry) Execute(ctx context.Context, action Action) (result *ExecutionResult, err error) {
	if action.ID == "" {
		action.ID = uuid.New().String()
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic recovered during action execution.",
				zap.String("action", string(action.Type)),
				zap.String("action_id", action.ID),
				zap.Any("panic_value", p),
				zap.Stack("stack"),
			)
			result = &ExecutionResult{
				Status:          StatusFailed,
				ObservationType: ObservedSystemState,
				ErrorCode:       ErrCodeExecutorPanic,
				ErrorDetails:    map[string]interface{}{"message": fmt.Sprintf("executor panicked: %v", p)},
			}
			err = nil
		}
		if result != nil {
			result.ActionID = action.ID
			if r.recorder != nil {
				r.recorder.ObserveAction(string(action.Type), result.Status, time.Since(start))
			}
		}
	}()

	executor, ok := r.executors[action.Type]
	if !ok {
		r.logger.Warn("Unknown action type requested.", zap.String("action", string(action.Type)))
		return &ExecutionResult{
			Status:          StatusFailed,
			ObservationType: ObservedSystemState,
			ErrorCode:       ErrCodeUnknownAction,
			ErrorDetails: map[string]interface{}{
				"message": fmt.Sprintf("no executor registered for action type: %s", action.Type),
			},
		}, nil
	}

	return executor.Execute(ctx, action)
}

// -- Exam Executor --

// ExamHandler runs one exam action and returns its result data.
type ExamHandler func(ctx context.Context, action Action) (interface{}, error)

type examRoute struct {
	handler     ExamHandler
	observation ObservationType
}

// ExamExecutor implements ActionExecutor for the exam page actions.
type ExamExecutor struct {
	logger   *zap.Logger
	helper   *exam.Helper
	validate *validator.Validate
	routes   map[ActionType]examRoute
}

var _ ActionExecutor = (*ExamExecutor)(nil)

// NewExamExecutor creates an ExamExecutor.
func NewExamExecutor(logger *zap.Logger, helper *exam.Helper) *ExamExecutor {
	e := &ExamExecutor{
		logger:   logger.Named("exam_executor"),
		helper:   helper,
		validate: newValidator(),
		routes:   make(map[ActionType]examRoute),
	}
	e.registerHandlers()
	return e
}

func (e *ExamExecutor) registerHandlers() {
	e.routes[ActionFillBlank] = examRoute{e.handleFillBlank, ObservedAnswerWrite}
	e.routes[ActionSelectSingleChoice] = examRoute{e.handleSingleChoice, ObservedAnswerWrite}
	e.routes[ActionSelectMultipleChoice] = examRoute{e.handleMultipleChoice, ObservedAnswerWrite}
	e.routes[ActionAnswerJudge] = examRoute{e.handleJudge, ObservedAnswerWrite}
	e.routes[ActionGetQuestionStatus] = examRoute{e.handleQuestionStatus, ObservedQuestionStatus}
	e.routes[ActionGetAllQuestionsStatus] = examRoute{e.handleAllQuestionsStatus, ObservedExamStatus}
}

// Types lists the action types this executor handles.
func (e *ExamExecutor) Types() []ActionType {
	out := make([]ActionType, 0, len(e.routes))
	for t := range e.routes {
		out = append(out, t)
	}
	return out
}

// Execute looks up and runs the handler for the action.
func (e *ExamExecutor) Execute(ctx context.Context, action Action) (*ExecutionResult, error) {
	route, ok := e.routes[action.Type]
	if !ok {
		return nil, fmt.Errorf("ExamExecutor internal error: handler not found for type: %s", action.Type)
	}

	data, err := route.handler(ctx, action)
	if err != nil {
		code, details := classifyError(err, action)
		e.logger.Warn("Exam action failed.",
			zap.String("action", string(action.Type)),
			zap.String("action_id", action.ID),
			zap.String("error_code", string(code)),
			zap.Error(err))
		return &ExecutionResult{
			Status:          StatusFailed,
			ObservationType: route.observation,
			ErrorCode:       code,
			ErrorDetails:    details,
		}, nil
	}

	return &ExecutionResult{
		Status:          StatusSuccess,
		ObservationType: route.observation,
		Data:            data,
	}, nil
}

// -- Action Handlers --

func (e *ExamExecutor) handleFillBlank(ctx context.Context, action Action) (interface{}, error) {
	var p FillBlankParams
	if err := e.decode(action, &p); err != nil {
		return nil, err
	}
	return e.helper.FillBlank(ctx, nil, exam.FillBlankRequest{
		QID:     p.QID,
		Answers: p.Answers,
		FrameID: p.FrameID,
	})
}

func (e *ExamExecutor) handleSingleChoice(ctx context.Context, action Action) (interface{}, error) {
	var p SingleChoiceParams
	if err := e.decode(action, &p); err != nil {
		return nil, err
	}
	return e.helper.SelectSingleChoice(ctx, nil, p.QID, strings.TrimSpace(p.Choice))
}

func (e *ExamExecutor) handleMultipleChoice(ctx context.Context, action Action) (interface{}, error) {
	var p MultipleChoiceParams
	if err := e.decode(action, &p); err != nil {
		return nil, err
	}
	return e.helper.SelectMultipleChoice(ctx, nil, p.QID, p.Choices)
}

func (e *ExamExecutor) handleJudge(ctx context.Context, action Action) (interface{}, error) {
	var p JudgeParams
	if err := e.decode(action, &p); err != nil {
		return nil, err
	}
	return e.helper.AnswerJudge(ctx, nil, p.QID, *p.Answer)
}

func (e *ExamExecutor) handleQuestionStatus(ctx context.Context, action Action) (interface{}, error) {
	var p QuestionStatusParams
	if err := e.decode(action, &p); err != nil {
		return nil, err
	}
	return e.helper.QuestionStatus(ctx, nil, p.QID)
}

func (e *ExamExecutor) handleAllQuestionsStatus(ctx context.Context, action Action) (interface{}, error) {
	return e.helper.AllQuestionsStatus(ctx, nil)
}

// decode unmarshals and validates the action parameters into out.
func (e *ExamExecutor) decode(action Action, out interface{}) error {
	raw := action.Params
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return newParamsError(action.Type, err)
	}
	if err := e.validate.Struct(out); err != nil {
		return newParamsError(action.Type, err)
	}
	return nil
}

// newValidator returns a validator that reports json field names, rejects
// whitespace-only strings tagged notblank and treats an unset question
// identifier as missing.
func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("failed to register notblank validation: %v", err))
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		id, ok := field.Interface().(exam.Identifier)
		if !ok || id.IsZero() {
			return ""
		}
		return id.String()
	}, exam.Identifier{})
	return v
}

// File: internal/mcp/handlers.go
package mcp

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/exam-autofill/internal/agent"
)

// maxBodyBytes bounds request bodies. Fill-blank answers are the largest
// legitimate payload.
const maxBodyBytes = 1 << 20

// Handlers manages the HTTP request handling for the action server.
type Handlers struct {
	log    *zap.Logger
	runner ActionRunner
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(logger *zap.Logger, runner ActionRunner) *Handlers {
	return &Handlers{
		log:    logger.Named("mcp_handlers"),
		runner: runner,
	}
}

// RegisterRoutes sets up the API routes on r.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		// Generic entry point used by the agent.
		r.Post("/command", h.HandleCommand)
		r.Get("/actions", h.HandleListActions)
		r.Post("/actions/{actionType}", h.HandleAction)
	})
}

// HandleHealthCheck is a simple handler to confirm the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// HandleCommand accepts {"command": ..., "params": {...}} where command is
// ping, list_actions or an action type.
func (h *Handlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	body, err := readBody(w, r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	h.log.Info("Received command", zap.String("command", req.Command))

	switch strings.ToLower(strings.TrimSpace(req.Command)) {
	case "ping":
		h.respondWithSuccess(w, http.StatusOK, map[string]string{"message": "pong"})
	case "list_actions", "actions":
		h.respondWithSuccess(w, http.StatusOK, h.runner.Descriptors())
	case "":
		h.respondWithError(w, http.StatusBadRequest, "Command is required.")
	default:
		actionType, ok := h.runner.ParseActionType(req.Command)
		if !ok {
			h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Unknown command: %s", req.Command))
			return
		}
		h.runAction(w, r, actionType, req.Params)
	}
}

// HandleListActions returns the action catalog.
func (h *Handlers) HandleListActions(w http.ResponseWriter, _ *http.Request) {
	h.respondWithSuccess(w, http.StatusOK, h.runner.Descriptors())
}

// HandleAction runs the action named in the path. The body holds its
// parameters.
func (h *Handlers) HandleAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "actionType")
	actionType, ok := h.runner.ParseActionType(name)
	if !ok {
		h.respondWithError(w, http.StatusNotFound, fmt.Sprintf("Unknown action type: %s", name))
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.runAction(w, r, actionType, body)
}

func (h *Handlers) runAction(w http.ResponseWriter, r *http.Request, actionType agent.ActionType, params json.RawMessage) {
	result, err := h.runner.Execute(r.Context(), agent.Action{Type: actionType, Params: params})
	if err != nil {
		// Only a cancelled or expired request context ends up here.
		h.log.Warn("Action not executed", zap.String("action", string(actionType)), zap.Error(err))
		h.respondWithError(w, http.StatusServiceUnavailable, fmt.Sprintf("Action not executed: %v", err))
		return
	}

	if result.Succeeded() {
		h.respondWithSuccess(w, http.StatusOK, result)
		return
	}
	h.respondWithStatus(w, statusForCode(result.ErrorCode), CommandResponse{
		Status: statusError,
		Data:   result,
		Error:  failureMessage(result),
	})
}

// statusForCode maps action error codes onto HTTP status codes.
func statusForCode(code agent.ErrorCode) int {
	switch code {
	case agent.ErrCodeInvalidParameters, agent.ErrCodeEmptyAnswer:
		return http.StatusBadRequest
	case agent.ErrCodeUnknownAction:
		return http.StatusNotFound
	case agent.ErrCodeQuestionUnresolved, agent.ErrCodeElementNotFound, agent.ErrCodeBlankCountMismatch:
		return http.StatusUnprocessableEntity
	case agent.ErrCodePageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func failureMessage(result *agent.ExecutionResult) string {
	if msg, ok := result.ErrorDetails["message"].(string); ok && msg != "" {
		return msg
	}
	return string(result.ErrorCode)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return body, nil
}

// respondWithError sends a standardized JSON error response.
func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	h.respondWithStatus(w, statusCode, CommandResponse{Status: statusError, Error: message})
}

// respondWithSuccess sends a standardized JSON success response.
func (h *Handlers) respondWithSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	h.respondWithStatus(w, statusCode, CommandResponse{Status: statusSuccess, Data: data})
}

func (h *Handlers) respondWithStatus(w http.ResponseWriter, statusCode int, resp CommandResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}

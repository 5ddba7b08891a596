// File: internal/mcp/types.go
package mcp

import (
	"context"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/exam-autofill/internal/agent"
)

// Envelope status values.
const (
	statusSuccess = "success"
	statusError   = "error"
)

// CommandRequest is the body of POST /api/v1/command.
type CommandRequest struct {
	Command string          `json:"command"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// CommandResponse is the envelope of every API response.
type CommandResponse struct {
	Status string      `json:"status"` // "success" or "error"
	Data   interface{} `json:"data,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// ActionRunner executes agent actions. *agent.ExecutorRegistry satisfies it.
type ActionRunner interface {
	Execute(ctx context.Context, action agent.Action) (*agent.ExecutionResult, error)
	Descriptors() []agent.ActionDescriptor
	ParseActionType(name string) (agent.ActionType, bool)
}

var _ ActionRunner = (*agent.ExecutorRegistry)(nil)

// File: cmd/app.go
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/exam-autofill/internal/agent"
	"github.com/xkilldash9x/exam-autofill/internal/browser"
	"github.com/xkilldash9x/exam-autofill/internal/config"
	"github.com/xkilldash9x/exam-autofill/internal/exam"
	"github.com/xkilldash9x/exam-autofill/internal/metrics"
)

// pageSource hands out the exam page. *browser.Manager implements it.
type pageSource interface {
	ActivePage(ctx context.Context) (exam.Page, error)
	Close() error
}

// newPageSource connects to the browser. Tests replace it.
var newPageSource = func(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (pageSource, error) {
	return browser.NewManager(ctx, logger, cfg)
}

// components holds everything one command needs to run actions.
type components struct {
	pages    pageSource
	metrics  *metrics.Metrics
	registry *agent.ExecutorRegistry
}

// initializeComponents wires the browser, the exam caches and the action
// registry together.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	pages, err := newPageSource(ctx, logger, cfg.Browser)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	m := metrics.New()
	state := exam.NewState(cfg.Exam.IDThreshold)
	helper := exam.NewHelper(logger, state, pages.ActivePage, exam.WithScriptObserver(m.ObserveScript))
	registry := agent.NewExecutorRegistry(logger, helper, agent.WithRecorder(m))

	return &components{pages: pages, metrics: m, registry: registry}, nil
}

// Shutdown releases the browser connection.
func (c *components) Shutdown(logger *zap.Logger) {
	if err := c.pages.Close(); err != nil {
		logger.Warn("Failed to close browser connection", zap.Error(err))
	}
}

// primeIndex runs one full scan so that display positions resolve in a fresh
// process. A failed scan is logged and otherwise ignored.
func (c *components) primeIndex(ctx context.Context, logger *zap.Logger) {
	result, err := c.registry.Execute(ctx, agent.Action{Type: agent.ActionGetAllQuestionsStatus})
	if err != nil {
		logger.Warn("Index scan not executed", zap.Error(err))
		return
	}
	if !result.Succeeded() {
		logger.Warn("Index scan failed; display positions will not resolve",
			zap.String("error_code", string(result.ErrorCode)),
			zap.Any("details", result.ErrorDetails))
	}
}

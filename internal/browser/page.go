// internal/browser/page.go
package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/exam-autofill/internal/exam"
)

// Page is one attached browser tab. It implements exam.Page.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc

	targetID target.ID
	url      string

	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ exam.Page = (*Page)(nil)

func newPage(ctx context.Context, cancel context.CancelFunc, info *target.Info, timeout time.Duration, limiter *rate.Limiter, logger *zap.Logger) *Page {
	return &Page{
		ctx:      ctx,
		cancel:   cancel,
		targetID: info.TargetID,
		url:      info.URL,
		timeout:  timeout,
		limiter:  limiter,
		logger:   logger.Named("page"),
	}
}

// TargetID identifies the tab.
func (p *Page) TargetID() target.ID { return p.targetID }

// URL is the tab's address when it was attached.
func (p *Page) URL() string { return p.url }

func (p *Page) alive() bool { return p.ctx.Err() == nil }

func (p *Page) close() { p.cancel() }

// Evaluate runs script in the tab, waiting for a returned promise, and decodes
// the JSON result into out. Calls are paced by the shared limiter and bounded
// by the configured timeout as well as ctx.
func (p *Page) Evaluate(ctx context.Context, script string, out interface{}) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting to evaluate: %w", err)
	}

	// The tab context carries the CDP target, ctx carries the caller's deadline.
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	if p.timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, p.timeout)
		defer cancelTimeout()
	}

	var raw []byte
	err := chromedp.Run(runCtx, chromedp.Evaluate(script, &raw, awaitPromise))
	if err != nil && !isEmptyResult(err) {
		return fmt.Errorf("failed to evaluate script: %w", err)
	}
	return decodeResult(raw, out)
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func isEmptyResult(err error) bool {
	return errors.Is(err, chromedp.ErrJSUndefined) || errors.Is(err, chromedp.ErrJSNull)
}

// decodeResult unmarshals raw into out. An empty or null result leaves out
// untouched.
func decodeResult(raw []byte, out interface{}) error {
	raw = bytes.TrimSpace(raw)
	if out == nil || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode script result: %w", err)
	}
	return nil
}

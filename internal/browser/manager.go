// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/exam-autofill/internal/config"
	"github.com/xkilldash9x/exam-autofill/internal/exam"
)

const (
	connectTimeout = 30 * time.Second
	blankURL       = "about:blank"
)

// Manager owns the connection to Chrome and hands out the exam page.
//
// In remote mode it attaches to the user's own browser, where the exam is
// already open and logged in. In launch mode it starts a dedicated Chrome and
// opens the configured start URL in its first tab.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	// allocatorCtx manages the browser process or remote connection. All tab
	// contexts are derived from it.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// controlCtx is the first tab chromedp opens on the connection. It is used
	// to list targets; in launch mode it is also the exam tab.
	controlCtx    context.Context
	controlCancel context.CancelFunc
	controlID     target.ID

	pattern *regexp.Regexp
	limiter *rate.Limiter

	mu   sync.Mutex
	page *Page
}

// NewManager connects to (or launches) Chrome and verifies it responds.
func NewManager(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (*Manager, error) {
	m := &Manager{
		logger:  logger.Named("browser_manager"),
		cfg:     cfg,
		limiter: newLimiter(cfg.MinActionInterval),
	}
	if cfg.PageURLPattern != "" {
		re, err := regexp.Compile(cfg.PageURLPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid page url pattern: %w", err)
		}
		m.pattern = re
	}

	switch cfg.Mode {
	case config.BrowserModeRemote:
		m.logger.Info("Attaching to running browser.", zap.String("remote_url", cfg.RemoteURL))
		m.allocatorCtx, m.allocatorCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	case config.BrowserModeLaunch:
		m.logger.Info("Launching browser.", zap.Bool("headless", cfg.Headless))
		m.allocatorCtx, m.allocatorCancel = chromedp.NewExecAllocator(context.Background(), buildAllocatorOptions(cfg)...)
	default:
		return nil, fmt.Errorf("unknown browser mode %q", cfg.Mode)
	}

	if err := m.connect(ctx); err != nil {
		m.allocatorCancel()
		return nil, err
	}
	return m, nil
}

// connect opens the control tab and, in launch mode, navigates it to the
// start URL.
func (m *Manager) connect(ctx context.Context) error {
	m.controlCtx, m.controlCancel = chromedp.NewContext(m.allocatorCtx)

	runCtx, cancel := CombineContext(m.controlCtx, ctx)
	defer cancel()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, connectTimeout)
	defer cancelTimeout()

	var actions []chromedp.Action
	if m.cfg.Mode == config.BrowserModeLaunch && m.cfg.StartURL != "" {
		actions = append(actions, chromedp.Navigate(m.cfg.StartURL))
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		m.controlCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	if c := chromedp.FromContext(m.controlCtx); c != nil && c.Target != nil {
		m.controlID = c.Target.TargetID
	}
	m.logger.Info("Browser connection established.")
	return nil
}

// allocatorFlags returns the Chrome command line flags for launch mode, keyed
// by flag name without the leading dashes.
func allocatorFlags(cfg config.BrowserConfig) map[string]interface{} {
	flags := map[string]interface{}{
		"headless":           cfg.Headless,
		"disable-extensions": true,
		"disable-gpu":        cfg.Headless,
	}
	if runtime.GOOS == "linux" {
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
	}

	// User supplied arguments win over the defaults above.
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags[name] = parts[1]
		} else {
			flags[name] = true
		}
	}
	return flags
}

// buildAllocatorOptions assembles the exec allocator options for launch mode.
func buildAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	return opts
}

// ActivePage returns the exam tab, attaching to it on first use and whenever
// the matching tab changes.
func (m *Manager) ActivePage(ctx context.Context) (exam.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	listCtx, cancel := CombineContext(m.controlCtx, ctx)
	defer cancel()
	infos, err := chromedp.Targets(listCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to list browser targets: %w", err)
	}

	skip := m.controlID
	if m.cfg.Mode == config.BrowserModeLaunch {
		// The control tab is the exam tab in launch mode.
		skip = ""
	}
	info, err := selectTarget(infos, m.pattern, skip)
	if err != nil {
		return nil, err
	}

	if m.page != nil && m.page.TargetID() == info.TargetID && m.page.alive() {
		return m.page, nil
	}
	if m.page != nil {
		m.page.close()
		m.page = nil
	}

	page, err := m.attach(ctx, info)
	if err != nil {
		return nil, err
	}
	m.page = page
	return page, nil
}

func (m *Manager) attach(ctx context.Context, info *target.Info) (*Page, error) {
	var (
		tabCtx context.Context
		cancel context.CancelFunc
	)
	if info.TargetID == m.controlID {
		// Cancelling the control tab is left to Close.
		tabCtx, cancel = context.WithCancel(m.controlCtx)
	} else {
		tabCtx, cancel = chromedp.NewContext(m.controlCtx, chromedp.WithTargetID(info.TargetID))
		runCtx, stop := CombineContext(tabCtx, ctx)
		err := chromedp.Run(runCtx)
		stop()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to attach to page %s: %w", info.URL, err)
		}
	}

	m.logger.Info("Attached to exam page.", zap.String("url", info.URL), zap.String("title", info.Title))
	return newPage(tabCtx, cancel, info, m.cfg.EvaluateTimeout, m.limiter, m.logger), nil
}

// Close detaches from the page and releases the browser connection. A
// launched browser is terminated; a remote one keeps running.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page != nil {
		m.page.close()
		m.page = nil
	}
	if m.controlCancel != nil {
		m.controlCancel()
	}
	if m.allocatorCancel != nil {
		m.allocatorCancel()
		<-m.allocatorCtx.Done()
	}
	m.logger.Info("Browser connection closed.")
	return nil
}

// selectTarget picks the exam tab: the first page whose URL matches pattern,
// otherwise the first page with real content, otherwise any page.
func selectTarget(infos []*target.Info, pattern *regexp.Regexp, skip target.ID) (*target.Info, error) {
	var pages []*target.Info
	for _, info := range infos {
		if info == nil || info.Type != "page" || (skip != "" && info.TargetID == skip) {
			continue
		}
		pages = append(pages, info)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page is open in the browser")
	}

	if pattern != nil {
		for _, p := range pages {
			if pattern.MatchString(p.URL) {
				return p, nil
			}
		}
	}
	for _, p := range pages {
		if p.URL != "" && p.URL != blankURL && !strings.HasPrefix(p.URL, "chrome://") {
			return p, nil
		}
	}
	return pages[0], nil
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

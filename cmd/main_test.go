// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/exam-autofill/internal/config"
	"github.com/xkilldash9x/exam-autofill/internal/exam"
	"github.com/xkilldash9x/exam-autofill/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePage answers evaluations from a queue of JSON documents.
type fakePage struct {
	mu        sync.Mutex
	responses []string
	scripts   []string
}

func (p *fakePage) Evaluate(_ context.Context, script string, out interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts = append(p.scripts, script)
	if len(p.responses) == 0 {
		return errors.New("unexpected evaluation")
	}
	raw := p.responses[0]
	p.responses = p.responses[1:]
	return json.Unmarshal([]byte(raw), out)
}

func (p *fakePage) evaluations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.scripts)
}

type fakePageSource struct {
	page   *fakePage
	closed bool
	cfg    config.BrowserConfig
}

func (s *fakePageSource) ActivePage(context.Context) (exam.Page, error) { return s.page, nil }

func (s *fakePageSource) Close() error {
	s.closed = true
	return nil
}

// useFakeBrowser swaps the browser connection for a scripted page.
func useFakeBrowser(t *testing.T, responses ...string) *fakePageSource {
	t.Helper()
	src := &fakePageSource{page: &fakePage{responses: responses}}
	orig := newPageSource
	newPageSource = func(_ context.Context, _ *zap.Logger, cfg config.BrowserConfig) (pageSource, error) {
		src.cfg = cfg
		return src, nil
	}
	t.Cleanup(func() { newPageSource = orig })
	return src
}

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()
	cfgFile = ""
	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
}

// writeConfig creates a config file in a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// executeCommand runs the CLI with an empty config file unless args name one.
// The config flag goes first so that it never follows a flag like --version
// that ends argument parsing.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetForTest(t)

	hasConfig := false
	for _, a := range args {
		if a == "--config" || a == "-c" {
			hasConfig = true
		}
	}
	if !hasConfig {
		args = append([]string{"--config", writeConfig(t, "logger:\n  level: fatal\n")}, args...)
	}

	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
)

// Lock files a crashed Chrome leaves behind in its profile directory.
// A stale lock makes the next launch fail with "session not created", so
// they are removed before every start.
var profileLockFiles = []string{
	"SingletonLock",
	"SingletonCookie",
	"SingletonSocket",
	"DevToolsActivePort",
}

// Session owns one Chrome instance bound to one persistent profile
// directory. Each pipeline worker holds exactly one session.
type Session struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	profileDir    string
	logger        arbor.ILogger
	config        *common.BrowserConfig
}

// NewSession prepares a session descriptor without launching Chrome
func NewSession(logger arbor.ILogger, config *common.BrowserConfig, profileDir string) *Session {
	return &Session{
		profileDir: profileDir,
		logger:     logger,
		config:     config,
	}
}

// ProfileDir returns the profile directory the session is bound to
func (s *Session) ProfileDir() string {
	return s.profileDir
}

// cleanProfileLocks removes stale singleton lock files from the profile.
// Missing files are fine, only real removal errors are reported.
func cleanProfileLocks(profileDir string) {
	for _, name := range profileLockFiles {
		_ = os.Remove(filepath.Join(profileDir, name))
	}
}

// isSessionNotCreated classifies launch failures that a lock cleanup plus
// one retry usually resolves.
func isSessionNotCreated(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "session not created") ||
		strings.Contains(msg, "probably user data directory is already in use")
}

// Open launches Chrome against the session's profile directory and probes
// it with a blank navigation. On a lock-style failure the locks are cleaned
// and the launch retried once; any other failure falls back to a fresh
// temporary profile so the worker can keep going.
func (s *Session) Open(ctx context.Context) error {
	if err := os.MkdirAll(s.profileDir, 0755); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	cleanProfileLocks(s.profileDir)

	err := s.launch(ctx, s.profileDir)
	if err == nil {
		return nil
	}

	if isSessionNotCreated(err) {
		s.logger.Warn().
			Err(err).
			Str("profile", s.profileDir).
			Msg("Browser launch hit a stale profile lock, retrying once")
		cleanProfileLocks(s.profileDir)
		if retryErr := s.launch(ctx, s.profileDir); retryErr == nil {
			return nil
		} else {
			err = retryErr
		}
	}

	tempDir, tmpErr := os.MkdirTemp("", "colligo-profile-")
	if tmpErr != nil {
		return fmt.Errorf("browser launch failed and no temp profile available: %w", err)
	}

	s.logger.Warn().
		Err(err).
		Str("profile", s.profileDir).
		Str("temp_profile", tempDir).
		Msg("Browser launch failed, falling back to a temporary profile")

	s.profileDir = tempDir
	if err := s.launch(ctx, tempDir); err != nil {
		return fmt.Errorf("browser launch failed on temporary profile: %w", err)
	}
	return nil
}

// launch starts Chrome with the given profile and runs the startup probe
func (s *Session) launch(ctx context.Context, profileDir string) error {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("lang", s.config.Lang),
		chromedp.UserDataDir(profileDir),
	)
	if s.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.config.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	probeCtx, probeCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer probeCancel()
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("browser failed startup probe: %w", err)
	}

	s.allocCtx = allocCtx
	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel

	s.logger.Info().
		Str("profile", profileDir).
		Bool("headless", s.config.Headless).
		Msg("Browser session opened")
	return nil
}

// Close shuts the browser down, waiting up to quitWait for a clean exit
// before force-killing the process. Safe to call on a never-opened session.
func (s *Session) Close(quitWait time.Duration) {
	if s.browserCancel == nil {
		return
	}

	proc := (*os.Process)(nil)
	if c := chromedp.FromContext(s.browserCtx); c != nil && c.Browser != nil {
		proc = c.Browser.Process()
	}

	done := make(chan struct{})
	go func() {
		s.browserCancel()
		s.allocCancel()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(quitWait):
		s.logger.Warn().Msg("Browser did not quit in time, killing process")
		if proc != nil {
			_ = proc.Kill()
		}
	}

	s.browserCtx = nil
	s.browserCancel = nil
	s.allocCtx = nil
	s.allocCancel = nil
}

// run executes chromedp actions against the session's browser, bounded by
// the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.browserCtx == nil {
		return fmt.Errorf("browser session is not open")
	}

	runCtx := s.browserCtx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	} else if ctx.Done() != nil {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithCancel(runCtx)
		defer cancel()
		go func() {
			select {
			case <-ctx.Done():
				cancel()
			case <-runCtx.Done():
			}
		}()
	}

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads a URL in the session's tab
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

// Location returns the tab's current URL
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

// Title returns the tab's current document title
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, chromedp.Title(&title))
	return title, err
}

// HTML returns the full outer HTML of the current document
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Screenshot captures the visible viewport as PNG bytes
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// Eval evaluates a JavaScript expression, unmarshalling the result into out.
// Pass nil to discard the result.
func (s *Session) Eval(ctx context.Context, expr string, out interface{}) error {
	if out == nil {
		var discard interface{}
		return s.run(ctx, chromedp.Evaluate(expr, &discard))
	}
	return s.run(ctx, chromedp.Evaluate(expr, out))
}

// Type clears an input matched by sel and types text into it
func (s *Session) Type(ctx context.Context, sel, text string) error {
	return s.run(ctx,
		chromedp.Click(sel, chromedp.ByQuery),
		chromedp.SetValue(sel, "", chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	)
}

// PressEnter submits the element matched by sel with the Enter key
func (s *Session) PressEnter(ctx context.Context, sel string) error {
	return s.run(ctx, chromedp.SendKeys(sel, kb.Enter, chromedp.ByQuery))
}

// Drag performs a mouse press-move-release gesture between two viewport
// points, used for panning the map canvas.
func (s *Session) Drag(ctx context.Context, fromX, fromY, toX, toY float64) error {
	steps := 12
	actions := []chromedp.Action{
		input.DispatchMouseEvent(input.MousePressed, fromX, fromY).
			WithButton(input.Left).
			WithClickCount(1),
	}
	for i := 1; i <= steps; i++ {
		x := fromX + (toX-fromX)*float64(i)/float64(steps)
		y := fromY + (toY-fromY)*float64(i)/float64(steps)
		actions = append(actions,
			input.DispatchMouseEvent(input.MouseMoved, x, y).WithButton(input.Left))
	}
	actions = append(actions,
		input.DispatchMouseEvent(input.MouseReleased, toX, toY).
			WithButton(input.Left).
			WithClickCount(1),
	)
	return s.run(ctx, actions...)
}

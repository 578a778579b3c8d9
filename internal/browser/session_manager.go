package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session describes the page the manager is driving.
type Session struct {
	ID        string    `json:"id"`
	TargetID  string    `json:"target_id,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Config holds browser configuration.
type Config struct {
	DebuggerURL         string   `yaml:"debugger_url"`
	Launch              []string `yaml:"launch,omitempty"`
	Headless            bool     `yaml:"headless"`
	UserDataDir         string   `yaml:"user_data_dir"` // keeps the manual login between runs
	ViewportWidth       int      `yaml:"viewport_width"`
	ViewportHeight      int      `yaml:"viewport_height"`
	NavigationTimeoutMs int      `yaml:"navigation_timeout_ms"`
}

// DefaultConfig returns sensible defaults. The browser is visible so the
// user can log in by hand.
func DefaultConfig() Config {
	return Config{
		Headless:            false,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// SessionManager owns the Chrome instance and the single page extraction runs
// in. The page is the one shared mutable resource, so one manager drives one
// page.
type SessionManager struct {
	cfg      Config
	logger   *zap.Logger
	mu       sync.Mutex
	browser  *rod.Browser
	page     *rod.Page
	session  *Session
	launched bool
}

// NewSessionManager creates a new session manager.
func NewSessionManager(cfg Config, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{cfg: cfg, logger: logger}
}

// Start connects to an existing Chrome or launches a new one.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil
		}
		m.logger.Warn("stale browser connection detected, reconnecting")
		_ = m.browser.Close()
		m.browser = nil
		m.page = nil
		m.session = nil
	}

	controlURL := m.cfg.DebuggerURL
	launched := false
	if controlURL == "" {
		url, err := m.launch()
		if err != nil {
			return err
		}
		controlURL = url
		launched = true
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	// Operations rebind their own context; shutdown must still work after
	// ctx is cancelled.
	m.browser = b.Context(context.Background())
	m.launched = launched
	m.logger.Info("browser connected",
		zap.String("control_url", controlURL),
		zap.Bool("launched", launched),
		zap.Bool("headless", m.cfg.Headless))
	return nil
}

func (m *SessionManager) launch() (string, error) {
	l := m.newLauncher()
	if len(m.cfg.Launch) > 0 {
		l = l.Bin(m.cfg.Launch[0])
		for _, rawFlag := range m.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				l = l.Set(flags.Flag(name), val)
			} else {
				l = l.Set(flags.Flag(name))
			}
		}
	}

	url, err := l.Launch()
	if err == nil {
		return url, nil
	}
	if len(m.cfg.Launch) == 0 {
		return "", fmt.Errorf("launch chrome: %w", err)
	}

	// Retry without the custom flags, which are the usual culprit.
	fallback := m.newLauncher().Bin(m.cfg.Launch[0])
	alt, altErr := fallback.Launch()
	if altErr != nil {
		return "", fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
	}
	m.logger.Warn("chrome launched without custom flags", zap.Error(err))
	return alt, nil
}

func (m *SessionManager) newLauncher() *launcher.Launcher {
	l := launcher.New().Headless(m.cfg.Headless)
	if m.cfg.UserDataDir != "" {
		l = l.UserDataDir(m.cfg.UserDataDir)
	}
	return l
}

// IsConnected returns whether the browser is connected.
func (m *SessionManager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser != nil
}

// Session returns the metadata of the open page, if any.
func (m *SessionManager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

// Open creates the session page, navigates it to url and returns a Driver
// bound to it. Closing the driver shuts the manager down.
func (m *SessionManager) Open(ctx context.Context, url string) (*RodDriver, error) {
	if err := m.Start(ctx); err != nil {
		return nil, err
	}

	d, session, err := m.openPage(url)
	if err != nil {
		return nil, err
	}
	if url != "" {
		if err := d.Navigate(ctx, url); err != nil {
			return nil, err
		}
	}
	m.sessionLogger(session).Info("session opened", zap.String("url", url))
	return d, nil
}

// sessionLogger tags the manager's logger with the session ID.
func (m *SessionManager) sessionLogger(s Session) *zap.Logger {
	return m.logger.With(zap.String("session", s.ID))
}

func (m *SessionManager) openPage(url string) (*RodDriver, Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser == nil {
		return nil, Session{}, ErrNotConnected
	}
	if m.page != nil {
		return nil, Session{}, errors.New("browser: session page already open")
	}

	page, err := m.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, Session{}, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		m.logger.Warn("failed to set viewport", zap.Error(err))
	}

	m.page = page
	m.session = &Session{
		ID:        uuid.NewString(),
		TargetID:  string(page.TargetID),
		URL:       url,
		CreatedAt: time.Now(),
	}

	return &RodDriver{
		page:       page,
		navTimeout: m.cfg.NavigationTimeout(),
		closeFn:    func() error { return m.Shutdown(context.Background()) },
	}, *m.session, nil
}

// Shutdown closes the session page and, when the manager launched Chrome,
// the browser itself. A browser reached through debugger_url is left running.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.page != nil {
		if err := m.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
		m.page = nil
	}
	m.session = nil

	if m.browser != nil {
		if m.launched {
			if err := m.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		m.browser = nil
	}
	m.launched = false
	return errors.Join(errs...)
}

// WithDriver opens a session on url, runs fn, and shuts the session down on
// every exit path.
func WithDriver(ctx context.Context, m *SessionManager, url string, fn func(Driver) error) (err error) {
	d, err := m.Open(ctx, url)
	if err != nil {
		if shutdownErr := m.Shutdown(context.Background()); shutdownErr != nil {
			m.logger.Warn("browser shutdown failed", zap.Error(shutdownErr))
		}
		return err
	}
	defer func() {
		if closeErr := d.Close(); closeErr != nil {
			m.logger.Warn("browser shutdown failed", zap.Error(closeErr))
		}
	}()
	return fn(d)
}

// Package browser drives the chat client's web page. The extraction engine only
// sees the Driver capability; RodDriver implements it on a Chrome instance
// owned by a SessionManager.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrTimeout is returned when a bounded wait expires before its condition holds.
	ErrTimeout = errors.New("browser: wait timed out")
	// ErrNotConnected is returned when the session has no live page.
	ErrNotConnected = errors.New("browser: not connected")
)

// Strategy selects how a Locator's value is interpreted.
type Strategy string

const (
	StrategyCSS   Strategy = "css"
	StrategyXPath Strategy = "xpath"
)

const xpathPrefix = "xpath:"

// Locator addresses a set of DOM elements.
type Locator struct {
	Strategy Strategy
	Value    string
}

// CSS returns a CSS selector locator.
func CSS(selector string) Locator {
	return Locator{Strategy: StrategyCSS, Value: selector}
}

// XPath returns an XPath locator.
func XPath(expr string) Locator {
	return Locator{Strategy: StrategyXPath, Value: expr}
}

// ParseLocator reads the config form of a locator: "xpath://div" selects
// XPath, anything else is a CSS selector.
func ParseLocator(s string) (Locator, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Locator{}, errors.New("empty locator")
	}
	if rest, ok := strings.CutPrefix(s, xpathPrefix); ok {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return Locator{}, fmt.Errorf("empty xpath in locator %q", s)
		}
		return XPath(rest), nil
	}
	return CSS(s), nil
}

func (l Locator) String() string {
	if l.Strategy == StrategyXPath {
		return xpathPrefix + l.Value
	}
	return l.Value
}

// Node is an opaque handle to a DOM element owned by a Driver.
type Node interface {
	String() string
}

// Driver is the browser capability the extraction engine depends on. All
// calls block; waits return ErrTimeout once their bound elapses.
type Driver interface {
	// Navigate loads url in the session page.
	Navigate(ctx context.Context, url string) error
	// WaitFor returns the first element matching loc once it is present.
	WaitFor(ctx context.Context, loc Locator, timeout time.Duration) (Node, error)
	// WaitForAll returns every element matching loc once at least one is present.
	WaitForAll(ctx context.Context, loc Locator, timeout time.Duration) ([]Node, error)
	// WaitClickable returns the first element matching loc once it is visible and enabled.
	WaitClickable(ctx context.Context, loc Locator, timeout time.Duration) (Node, error)
	// FindAll returns the elements currently matching loc without waiting.
	FindAll(ctx context.Context, loc Locator) ([]Node, error)
	Click(ctx context.Context, n Node) error
	// Attribute returns the named attribute, or "" when it is absent.
	Attribute(ctx context.Context, n Node, name string) (string, error)
	// ScrollToEnd scrolls n to the bottom of its content.
	ScrollToEnd(ctx context.Context, n Node) error
	// Close quits the browser session.
	Close() error
}

// waitError maps a failed bounded wait onto ErrTimeout when the deadline of
// the wait, rather than the caller's context, ended it.
func waitError(parent context.Context, what string, err error) error {
	if err == nil {
		return nil
	}
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", what, ErrTimeout)
	}
	return fmt.Errorf("%s: %w", what, err)
}

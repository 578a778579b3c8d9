// Package extract walks the chat client's conversation list and collects the
// messages of each conversation into a run buffer.
package extract

import (
	"context"
	"fmt"
	"time"

	"skypescrape/internal/browser"

	"go.uber.org/zap"
)

// DefaultScrollPause is how long the loader lets the page render between
// scroll rounds.
const DefaultScrollPause = 2 * time.Second

// Loader scrolls a conversation's history until the number of rendered
// message nodes stops growing.
//
// The stop condition is observational: a page that renders slower than Pause
// can look converged before the true start of history is reached. Such
// under-collection is silent.
type Loader struct {
	Driver   browser.Driver
	Messages browser.Locator
	Pause    time.Duration
	// MaxRounds caps the number of scroll rounds. Zero means no cap.
	MaxRounds int
	Clock     Clock
	Logger    *zap.Logger
}

// LoadAll returns the last observed set of message nodes.
func (l *Loader) LoadAll(ctx context.Context) ([]browser.Node, error) {
	clock := l.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	previous := 0
	var nodes []browser.Node
	for round := 1; ; round++ {
		if err := clock.Sleep(ctx, l.Pause); err != nil {
			return nodes, err
		}

		current, err := l.Driver.FindAll(ctx, l.Messages)
		if err != nil {
			return nodes, fmt.Errorf("query messages: %w", err)
		}
		nodes = current

		if len(current) <= previous {
			logger.Debug("history converged", zap.Int("messages", len(current)), zap.Int("rounds", round))
			return nodes, nil
		}
		previous = len(current)

		if l.MaxRounds > 0 && round >= l.MaxRounds {
			logger.Warn("scroll round cap reached, history may be incomplete",
				zap.Int("messages", len(current)), zap.Int("max_rounds", l.MaxRounds))
			return nodes, nil
		}

		if err := l.Driver.ScrollToEnd(ctx, current[len(current)-1]); err != nil {
			return nodes, fmt.Errorf("scroll history: %w", err)
		}
	}
}

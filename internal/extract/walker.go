package extract

import (
	"context"
	"fmt"
	"time"

	"skypescrape/internal/browser"
	"skypescrape/internal/message"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultLimit is the number of conversations opened when no limit is given.
const DefaultLimit = 10

// DefaultWaitTimeout bounds every wait for an element.
const DefaultWaitTimeout = 30 * time.Second

// Selectors locate the parts of the chat client the walker touches.
type Selectors struct {
	ConversationList browser.Locator
	MessageRegion    browser.Locator
	Message          browser.Locator
	BackButton       browser.Locator
	LabelAttribute   string
}

// Options configure a Walker.
type Options struct {
	Selectors       Selectors
	Parser          message.Parser
	WaitTimeout     time.Duration
	ScrollPause     time.Duration
	MaxScrollRounds int
	Clock           Clock
	// OnProgress, when set, is called after each conversation with the number
	// of conversations that will be opened in total.
	OnProgress func(res ConversationResult, total int)
}

// Walker opens conversations one after the other and scrapes their messages
// into its buffer. It is the only user of the driver while it runs.
type Walker struct {
	driver browser.Driver
	opts   Options
	buffer *message.Buffer
	logger *zap.Logger
}

// NewWalker returns a walker that accumulates into buf. A nil buf gets a
// fresh buffer.
func NewWalker(d browser.Driver, opts Options, buf *message.Buffer, logger *zap.Logger) *Walker {
	if buf == nil {
		buf = message.NewBuffer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.Selectors.LabelAttribute == "" {
		opts.Selectors.LabelAttribute = "aria-label"
	}
	return &Walker{driver: d, opts: opts, buffer: buf, logger: logger}
}

// Run walks at most limit conversations (DefaultLimit when limit <= 0).
// Per-conversation failures are recorded in the report and the walk goes on;
// only a failure to find the list, or cancellation of ctx, ends it early.
func (w *Walker) Run(ctx context.Context, limit int) (*Report, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: w.opts.Clock.Now(),
		Limit:     limit,
	}
	logger := w.logger.With(zap.String("run", report.RunID))
	defer func() {
		report.FinishedAt = w.opts.Clock.Now()
		report.Records = w.buffer.Records()
	}()

	logger.Info("locating conversations", zap.Stringer("locator", w.opts.Selectors.ConversationList))
	handles, err := w.driver.WaitForAll(ctx, w.opts.Selectors.ConversationList, w.opts.WaitTimeout)
	if err != nil {
		logger.Error("conversation list not found", zap.Error(err))
		return report, fmt.Errorf("%w: %w", ErrListDiscovery, err)
	}

	report.Discovered = len(handles)
	total := min(limit, len(handles))
	logger.Info("conversations found",
		zap.Int("discovered", report.Discovered),
		zap.Int("limit", limit),
		zap.Int("to_process", total))

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		idx := i + 1
		logger.Info("extracting conversation", zap.Int("conversation", idx), zap.Int("total", report.Discovered))

		res := w.processConversation(ctx, idx, handles[i])
		report.Conversations = append(report.Conversations, res)
		if res.Err != nil {
			logger.Error("conversation extraction failed",
				zap.Int("conversation", idx),
				zap.String("stage", string(res.Stage)),
				zap.Int("kept_messages", res.Messages),
				zap.Error(res.Err))
		} else {
			logger.Debug("conversation extracted",
				zap.Int("conversation", idx),
				zap.Int("nodes", res.Nodes),
				zap.Int("messages", res.Messages))
		}
		if w.opts.OnProgress != nil {
			w.opts.OnProgress(res, total)
		}
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("walk interrupted",
			zap.Int("processed", report.Processed()),
			zap.Int("messages", w.buffer.Len()))
		return report, err
	}

	logger.Info("walk complete",
		zap.Int("discovered", report.Discovered),
		zap.Int("processed", report.Processed()),
		zap.Int("failed", report.Failed()),
		zap.Int("messages", w.buffer.Len()))
	return report, nil
}

func (w *Walker) processConversation(ctx context.Context, idx int, handle browser.Node) ConversationResult {
	res := ConversationResult{Index: idx, Stage: StageOpen}
	fail := func(err error) ConversationResult {
		res.Err = &ExtractionError{Index: idx, Stage: res.Stage, Err: err}
		return res
	}
	sel := w.opts.Selectors
	timeout := w.opts.WaitTimeout

	if err := w.click(ctx, handle); err != nil {
		return fail(err)
	}

	res.Stage = StageAwaitRegion
	if _, err := w.driver.WaitFor(ctx, sel.MessageRegion, timeout); err != nil {
		return fail(err)
	}

	res.Stage = StageLoadHistory
	loader := &Loader{
		Driver:    w.driver,
		Messages:  sel.Message,
		Pause:     w.opts.ScrollPause,
		MaxRounds: w.opts.MaxScrollRounds,
		Clock:     w.opts.Clock,
		Logger:    w.logger.With(zap.Int("conversation", idx)),
	}
	nodes, err := loader.LoadAll(ctx)
	if err != nil {
		return fail(err)
	}
	res.Nodes = len(nodes)

	res.Stage = StageScrape
	for _, n := range nodes {
		label, err := w.driver.Attribute(ctx, n, sel.LabelAttribute)
		if err != nil {
			return fail(err)
		}
		rec, ok := w.opts.Parser.Parse(label)
		if !ok {
			continue
		}
		rec.ExtractedAt = w.opts.Clock.Now()
		if w.buffer.Add(rec) {
			res.Messages++
		}
	}

	res.Stage = StageReturn
	back, err := w.driver.WaitClickable(ctx, sel.BackButton, timeout)
	if err != nil {
		return fail(err)
	}
	if err := w.click(ctx, back); err != nil {
		return fail(err)
	}

	res.Stage = StageDone
	return res
}

func (w *Walker) click(ctx context.Context, n browser.Node) error {
	clickCtx, cancel := context.WithTimeout(ctx, w.opts.WaitTimeout)
	defer cancel()
	return w.driver.Click(clickCtx, n)
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"skypescrape/internal/browser"
	"skypescrape/internal/config"
	"skypescrape/internal/export"
	"skypescrape/internal/extract"
	"skypescrape/internal/logging"
	"skypescrape/internal/message"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupGlobals(t *testing.T) {
	t.Helper()
	cfg = config.DefaultConfig()
	logs = logging.Wrap(zaptest.NewLogger(t), cfg.Logging)
	logger = logs.Get(logging.CategoryBoot)
}

func newTestCommand(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func TestConfigInit(t *testing.T) {
	setupGlobals(t)
	configPath = filepath.Join(t.TempDir(), "skypescrape.yaml")
	forceInit = false

	cmd, out := newTestCommand(t)
	require.NoError(t, runConfigInit(cmd, nil))
	require.Contains(t, out.String(), configPath)

	loaded, err := config.Load(configPath)
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfig().Client, loaded.Client)

	require.Error(t, runConfigInit(cmd, nil), "existing file is kept")

	forceInit = true
	t.Cleanup(func() { forceInit = false })
	require.NoError(t, runConfigInit(cmd, nil))
}

func TestStoreShow(t *testing.T) {
	setupGlobals(t)
	cfg.Export.Format = "csv"
	cfg.Export.Path = filepath.Join(t.TempDir(), "messages.csv")

	cmd, out := newTestCommand(t)
	require.NoError(t, runStoreShow(cmd, nil))
	require.Contains(t, out.String(), "does not exist yet")

	store, err := export.OpenStore(export.FormatCSV, cfg.Export.Path, export.StoreOptions{})
	require.NoError(t, err)
	var records []message.Record
	for i := 0; i < 12; i++ {
		records = append(records, message.Record{
			Sender:    fmt.Sprintf("user%d", i%3),
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: fmt.Sprintf("10:%02d", i),
		})
	}
	require.NoError(t, store.Save(context.Background(), records))

	tailFlag, styleFlag = 2, "notty"
	t.Cleanup(func() { tailFlag, styleFlag = 10, "auto" })
	out.Reset()
	require.NoError(t, runStoreShow(cmd, nil))
	got := out.String()
	require.Contains(t, got, "12")
	require.Contains(t, got, "message 11")
	require.Contains(t, got, "message 10")
	require.NotContains(t, got, "message 9")
}

func TestApplyExtractFlags(t *testing.T) {
	cmd := &cobra.Command{}
	addExtractFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--limit", "3", "--policy", "fresh", "--format", "csv", "-o", "out", "--headless"}))

	c := config.DefaultConfig()
	applyExtractFlags(cmd, c)
	require.Equal(t, 3, c.Extraction.Limit)
	require.Equal(t, "fresh", c.Export.Policy)
	require.Equal(t, "csv", c.Export.Format)
	require.Equal(t, "out", c.Export.Dir)
	require.Equal(t, "skypeMessages.xlsx", c.Export.Path)
	require.True(t, c.Browser.Headless)

	cmd = &cobra.Command{}
	addExtractFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--output", "merged.db"}))
	c = config.DefaultConfig()
	applyExtractFlags(cmd, c)
	require.Equal(t, "merged.db", c.Export.Path)
	require.Equal(t, 10, c.Extraction.Limit, "unset flags keep config values")
}

func TestRenderSummary(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	report := &extract.Report{
		RunID:      "run-1",
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Discovered: 7,
		Conversations: []extract.ConversationResult{
			{Index: 1, Stage: extract.StageDone},
			{Index: 2, Stage: extract.StageOpen, Err: &extract.ExtractionError{Index: 2, Stage: extract.StageOpen, Err: errors.New("stale element")}},
		},
		Records: []message.Record{{Sender: "A", Content: "hi", Timestamp: "10:00"}},
	}
	res := &export.Result{Policy: export.PolicyMerge, Path: "skypeMessages.xlsx", Existing: 4, Added: 1, Total: 5, Written: true}

	got := renderSummary(report, res, nil)
	for _, want := range []string{"Discovered", "7", "Processed", "Failed", "skypeMessages.xlsx", "conversation 2: open_conversation: stale element", "1m30s"} {
		require.Contains(t, got, want)
	}

	got = renderSummary(report, &export.Result{Policy: export.PolicyMerge, Path: "x", Existing: 5, Total: 5}, nil)
	require.Contains(t, got, "already up to date")

	got = renderSummary(report, nil, errors.New("disk full"))
	require.Contains(t, got, "export failed: disk full")
}

func TestConfirmLogin(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, confirmLogin(strings.NewReader("\n"), &out))
	require.Contains(t, out.String(), "Log in to Skype")
}

// loginDriver answers WaitFor with a fixed error; nothing else is used.
type loginDriver struct {
	browser.Driver
	err error
}

func (d *loginDriver) WaitFor(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.Node, error) {
	return nil, d.err
}

func TestAwaitLoginPage(t *testing.T) {
	setupGlobals(t)
	ctx := context.Background()
	login := browser.CSS("[name='loginfmt']")

	require.NoError(t, awaitLoginPage(ctx, &loginDriver{}, login, time.Second))
	require.NoError(t, awaitLoginPage(ctx, &loginDriver{err: fmt.Errorf("wait: %w", browser.ErrTimeout)}, login, time.Second),
		"signed-in profile skips the form")

	err := awaitLoginPage(ctx, &loginDriver{err: browser.ErrNotConnected}, login, time.Second)
	require.ErrorIs(t, err, browser.ErrNotConnected)
}

func TestAfterWalk(t *testing.T) {
	setupGlobals(t)
	report := &extract.Report{Records: []message.Record{{Sender: "A", Content: "hi", Timestamp: "10:00"}}}

	ctx, ok, err := afterWalk(context.Background(), report, nil)
	require.True(t, ok)
	require.NoError(t, err)
	require.NoError(t, ctx.Err())

	_, ok, err = afterWalk(context.Background(), report, extract.ErrListDiscovery)
	require.False(t, ok)
	require.ErrorIs(t, err, extract.ErrListDiscovery)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	// Cancelled while the last conversation was open: the walk itself ended
	// without error.
	ctx, ok, err = afterWalk(cancelled, report, nil)
	require.True(t, ok)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, ctx.Err(), "export runs under a live context")

	ctx, ok, err = afterWalk(cancelled, report, fmt.Errorf("walk: %w", context.Canceled))
	require.True(t, ok)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, ctx.Err())

	_, ok, err = afterWalk(cancelled, nil, context.Canceled)
	require.False(t, ok)
	require.ErrorIs(t, err, context.Canceled)

	store, err := export.OpenStore(export.FormatCSV, filepath.Join(t.TempDir(), "m.csv"), export.StoreOptions{})
	require.NoError(t, err)
	ctx, _, _ = afterWalk(cancelled, report, nil)
	res, err := export.NewMergeExporter(store, nil).Export(ctx, report.Records)
	require.NoError(t, err)
	require.Equal(t, 1, res.Added)
}

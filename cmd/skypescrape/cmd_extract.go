package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"skypescrape/internal/browser"
	"skypescrape/internal/config"
	"skypescrape/internal/export"
	"skypescrape/internal/extract"
	"skypescrape/internal/logging"

	"github.com/spf13/cobra"
	"github.com/tcnksm/go-input"
	"go.uber.org/zap"
)

// Extraction flags; each overrides its config key when set.
var (
	limitFlag    int
	policyFlag   string
	formatFlag   string
	outputFlag   string
	headlessFlag bool
	noPrompt     bool
)

func addExtractFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&limitFlag, "limit", "n", extract.DefaultLimit, "Number of conversations to open")
	cmd.Flags().StringVar(&policyFlag, "policy", "", "Export policy: merge or fresh")
	cmd.Flags().StringVar(&formatFlag, "format", "", "Store format: xlsx, csv or sqlite")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Merge store path, or fresh export directory")
	cmd.Flags().BoolVar(&headlessFlag, "headless", false, "Run Chrome without a window (needs a logged-in profile)")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Do not wait for Enter after the login page loads")
}

// applyExtractFlags folds explicitly set flags into c.
func applyExtractFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("limit") {
		c.Extraction.Limit = limitFlag
	}
	if flags.Changed("policy") {
		c.Export.Policy = policyFlag
	}
	if flags.Changed("format") {
		c.Export.Format = formatFlag
	}
	if flags.Changed("output") {
		if p, _ := export.ParsePolicy(c.Export.Policy); p == export.PolicyFresh {
			c.Export.Dir = outputFlag
		} else {
			c.Export.Path = outputFlag
		}
	}
	if flags.Changed("headless") {
		c.Browser.Headless = headlessFlag
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	applyExtractFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	selectors, err := cfg.Selectors()
	if err != nil {
		return err
	}
	login, err := cfg.LoginLocator()
	if err != nil {
		return err
	}
	exportOpts, err := cfg.ExportOptions(time.Now, logs.Get(logging.CategoryExport))
	if err != nil {
		return err
	}
	exporter, err := export.New(exportOpts)
	if err != nil {
		return err
	}

	manager := browser.NewSessionManager(cfg.Browser, logs.Get(logging.CategoryBrowser))
	var report *extract.Report
	runErr := browser.WithDriver(ctx, manager, cfg.Client.URL, func(d browser.Driver) error {
		if err := awaitLoginPage(ctx, d, login, cfg.GetLoginTimeout()); err != nil {
			return err
		}
		if !noPrompt {
			if err := confirmLogin(cmd.InOrStdin(), out); err != nil {
				return err
			}
		}

		walker := extract.NewWalker(d, extract.Options{
			Selectors:       selectors,
			Parser:          cfg.MessageParser(),
			WaitTimeout:     cfg.GetWaitTimeout(),
			ScrollPause:     cfg.GetScrollPause(),
			MaxScrollRounds: cfg.Extraction.MaxScrollRounds,
			OnProgress:      progressPrinter(out),
		}, nil, logs.Get(logging.CategoryWalker))

		var err error
		report, err = walker.Run(ctx, cfg.Extraction.Limit)
		return err
	})

	exportCtx, ok, runErr := afterWalk(ctx, report, runErr)
	if !ok {
		logger.Error("extraction failed", zap.Error(runErr))
		return runErr
	}

	res, exportErr := exporter.Export(exportCtx, report.Records)
	fmt.Fprintln(out, renderSummary(report, res, exportErr))
	if exportErr != nil {
		logger.Error("export failed", zap.Error(exportErr))
		return fmt.Errorf("export: %w", exportErr)
	}
	return runErr
}

// afterWalk decides whether the records of a finished walk are exported. An
// interrupted walk still exports what it collected, under a context that is
// no longer cancelled, and the command then fails with the interruption.
func afterWalk(ctx context.Context, report *extract.Report, runErr error) (context.Context, bool, error) {
	interrupted := ctx.Err() != nil
	if report == nil || (runErr != nil && !interrupted) {
		return ctx, false, runErr
	}
	if !interrupted {
		return ctx, true, nil
	}
	logger.Warn("extraction interrupted, exporting collected records",
		zap.Int("records", len(report.Records)))
	if runErr == nil {
		runErr = ctx.Err()
	}
	return context.WithoutCancel(ctx), true, runErr
}

// awaitLoginPage waits for the login form. A profile that is already signed
// in never shows it, so a timeout only logs a warning.
func awaitLoginPage(ctx context.Context, d browser.Driver, login browser.Locator, timeout time.Duration) error {
	logger.Info("waiting for login page", zap.Stringer("locator", login))
	if _, err := d.WaitFor(ctx, login, timeout); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			logger.Warn("login form not shown, assuming an existing session", zap.Duration("waited", timeout))
			return nil
		}
		return fmt.Errorf("login page: %w", err)
	}
	return nil
}

// confirmLogin blocks until the user has logged in by hand and pressed Enter.
func confirmLogin(in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Log in to Skype in the browser window.")
	ui := &input.UI{Reader: in, Writer: out}
	_, err := ui.Ask("Wait for your conversations to load, then press Enter to continue", &input.Options{
		HideOrder: true,
	})
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, input.ErrEmpty) {
		return fmt.Errorf("login confirmation: %w", err)
	}
	return nil
}

func progressPrinter(out io.Writer) func(extract.ConversationResult, int) {
	return func(res extract.ConversationResult, total int) {
		if res.OK() {
			fmt.Fprintf(out, "[%d/%d] %d new messages (%d scanned)\n", res.Index, total, res.Messages, res.Nodes)
			return
		}
		fmt.Fprintf(out, "[%d/%d] %s\n", res.Index, total, errorStyle.Render(res.Err.Error()))
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"skypescrape/internal/config"
	"skypescrape/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logs   *logging.Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "skypescrape",
	Short: "Extract Skype Web conversations into a spreadsheet",
	Long: `skypescrape opens Skype Web in a Chrome window, waits for you to log in,
then walks the conversation list, scrolls each history to its start and
collects every message (sender, text, time).

Records are merged into one store without duplicates (export.policy: merge)
or written to a new timestamped file per run (export.policy: fresh).

Run without a subcommand to start an extraction.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		logs, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		logger = logs.Get(logging.CategoryBoot)
		logger.Debug("configuration loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Sync()
		}
	},
	RunE: runExtract,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML configuration")

	addExtractFlags(rootCmd)

	configCmd.AddCommand(configInitCmd)
	storeCmd.AddCommand(storeShowCmd)
	rootCmd.AddCommand(configCmd, storeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"

	"skypescrape/internal/export"
	"skypescrape/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	tailFlag  int
	styleFlag string
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect the merge store",
}

var storeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print record counts and the last stored messages",
	RunE:  runStoreShow,
}

func init() {
	storeShowCmd.Flags().IntVarP(&tailFlag, "tail", "t", 10, "Number of trailing records to print")
	storeShowCmd.Flags().StringVar(&styleFlag, "style", "auto", "Table style: auto, dark, light, notty")
}

func runStoreShow(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(cfg.Export.Format)
	if err != nil {
		return err
	}
	store, err := export.OpenStore(format, cfg.Export.Path, export.StoreOptions{})
	if err != nil {
		return err
	}

	storeLog := logs.Get(logging.CategoryStore)
	records, err := store.Load(cmd.Context())
	if err != nil {
		storeLog.Error("failed to load store", zap.String("path", store.Path()), zap.Error(err))
		return fmt.Errorf("load %s: %w", store.Path(), err)
	}
	storeLog.Debug("store loaded", zap.String("path", store.Path()), zap.Int("records", len(records)))

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintf(out, "%s is empty or does not exist yet\n", store.Path())
		return nil
	}

	senders := make(map[string]struct{})
	for _, r := range records {
		senders[r.Sender] = struct{}{}
	}
	fmt.Fprintln(out, titleStyle.Render(store.Path()))
	fmt.Fprintln(out, summaryLine("Records", len(records)))
	fmt.Fprintln(out, summaryLine("Senders", len(senders)))

	if tailFlag > 0 {
		start := max(0, len(records)-tailFlag)
		table, err := renderRecords(records[start:], styleFlag)
		if err != nil {
			return err
		}
		fmt.Fprint(out, table)
	}
	return nil
}

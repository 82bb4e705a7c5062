package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/salesload/internal/state"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
	RunID string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Long: `List recent pipeline runs from the state database, newest first.
With --run, list the batches of one run instead.`,
		Example: `  salesload history --limit 5
  salesload history --run 6f1c...`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "Show the batches of this run")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	store := state.NewSQLiteStore()
	if err := store.Open(cmd.Context(), cc.Cfg.StatePath); err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer func() { _ = store.Close() }()

	w := cmd.OutOrStdout()
	if opts.RunID != "" {
		if _, err := store.GetRun(cmd.Context(), opts.RunID); err != nil {
			return err
		}
		batches, err := store.ListBatches(cmd.Context(), opts.RunID)
		if err != nil {
			return err
		}
		renderBatches(w, batches)
		return nil
	}

	runs, err := store.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return err
	}
	renderRuns(w, runs)
	return nil
}

func renderRuns(w io.Writer, runs []*state.Run) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "(0 runs)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Source", "Status", "Started", "Duration", "Error"})
	for _, r := range runs {
		duration := "-"
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		t.AppendRow(table.Row{r.ID, r.Source, string(r.Status), r.StartedAt.Local().Format(time.DateTime), duration, r.Error})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d runs)\n", len(runs))
}

func renderBatches(w io.Writer, batches []*state.BatchRun) {
	if len(batches) == 0 {
		_, _ = fmt.Fprintln(w, "(0 batches)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Batch", "Read", "Kept", "Customers", "Products", "Sales"})
	for _, b := range batches {
		t.AppendRow(table.Row{b.Batch, b.RowsRead, b.RowsKept, b.CustomersLoaded, b.ProductsLoaded, b.SalesLoaded})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d batches)\n", len(batches))
}

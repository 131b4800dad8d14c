package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"appboard/internal/config"
	"appboard/internal/history"
	"appboard/internal/utils"
)

func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and prune archived snapshots",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryPruneCmd())

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var (
		cfgPath string
		appID   string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openArchive(cfgPath)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.ListRecent(cmd.Context(), appID, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAPP\tRANGE\tHEALTH\tISSUES\tCOST\tCOMPUTED")
			for _, rec := range records {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
					rec.ID, rec.AppID, rec.RangeToken, rec.Health, rec.IssueCount,
					recordCost(rec), utils.TimeOrDash(rec.ComputedAt.Local(), utils.DateTimeSec))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&appID, "app", "a", "", "only list snapshots for this application")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of records")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path (default ~/.config/appboard/config.yaml)")

	return cmd
}

// recordCost pulls the range cost out of the archived payload, or a
// dash when the snapshot carries no cost summary.
func recordCost(rec history.Record) string {
	snap, err := rec.Snapshot()
	if err != nil || snap.Cost == nil {
		return "—"
	}
	return utils.Currency(snap.Cost.TotalCost, snap.Cost.Currency)
}

func newHistoryPruneCmd() *cobra.Command {
	var (
		cfgPath   string
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete archived snapshots older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openArchive(cfgPath)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.DeleteOlderThan(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d snapshots older than %s\n", removed, olderThan)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age cutoff, e.g. 720h")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path (default ~/.config/appboard/config.yaml)")

	return cmd
}

// openArchive opens the snapshot archive without wiring the rest of the
// stack. A missing or broken config file falls back to the default
// archive path so history stays usable on its own.
func openArchive(cfgPath string) (*history.Store, error) {
	path, err := config.ResolvePath(cfgPath)
	if err != nil {
		return history.Open()
	}
	cfg, err := config.Load(path)
	if err == nil && cfg.History.Path != "" {
		return history.OpenAt(cfg.History.Path)
	}
	return history.Open()
}

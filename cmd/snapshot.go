package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"appboard/internal/logging"
)

func NewSnapshotCmd() *cobra.Command {
	var (
		cfgPath    string
		appID      string
		rangeToken string
		pretty     bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Aggregate one application and print the snapshot as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New("snapshot")
			ctx := cmd.Context()

			st, err := buildStack(ctx, cfgPath, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			snap, err := st.svc.GetAggregatedSnapshot(ctx, appID, rangeToken)
			if err != nil {
				return fmt.Errorf("aggregating %s: %w", appID, err)
			}

			enc := json.NewEncoder(os.Stdout)
			if pretty {
				enc.SetIndent("", "  ")
			}
			return enc.Encode(snap)
		},
	}

	cmd.Flags().StringVarP(&appID, "app", "a", "", "application id to aggregate")
	cmd.Flags().StringVarP(&rangeToken, "range", "r", "24h", "time range token (1h, 6h, 24h, 7d, 30d, 90d)")
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path (default ~/.config/appboard/config.yaml)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")
	_ = cmd.MarkFlagRequired("app")

	return cmd
}

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"appboard/internal/logging"
	"appboard/internal/server"
)

func NewServeCmd() *cobra.Command {
	var (
		cfgPath string
		listen  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the aggregation API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New("serve")
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := buildStack(ctx, cfgPath, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			addr := listen
			if addr == "" {
				addr = st.cfg.Server.ListenAddr()
			}
			return server.New(st.svc, logger).Run(ctx, addr)
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path (default ~/.config/appboard/config.yaml)")
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")

	return cmd
}

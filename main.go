package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"appboard/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "appboard",
		Short: "Aggregated health, traffic, and cost metrics for your applications",
	}

	rootCmd.AddCommand(cmd.NewSnapshotCmd())
	rootCmd.AddCommand(cmd.NewServeCmd())
	rootCmd.AddCommand(cmd.NewHistoryCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

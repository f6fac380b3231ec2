package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/warehouse-sim/pkg/logger"
)

var logLevel string

// newRootCmd builds the whsim command tree
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "whsim",
		Short: "Warehouse replenishment policy evaluation",
		Long: `whsim evaluates replenishment and transport policies for a network of
warehouses under uncertain prices. Each period the policy decides how much to
order, ship and leave unmet; every decision is checked against the physical
constraints and replaced by a safe fallback when it breaks them.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger.SetDefault(logger.NewText(logLevel, cmd.ErrOrStderr()))
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newServeCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

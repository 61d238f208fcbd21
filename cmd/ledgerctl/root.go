package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"contract-ledger/internal/app"
	"contract-ledger/internal/config"
	"contract-ledger/internal/logger"
)

// cliState is shared by every subcommand of one invocation.
type cliState struct {
	cfg    *config.Config
	logger *slog.Logger
	output string
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Inspect and maintain the deleted-contract ledger",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch state.output {
			case outputTable, outputJSON, outputYAML:
			default:
				return fmt.Errorf("unknown output format %q (table, json or yaml)", state.output)
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			state.cfg = cfg
			// stdout carries command output only
			state.logger = logger.New(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&state.output, "output", "o", outputTable, "output format: table, json or yaml")

	root.AddCommand(
		newListCmd(state),
		newCheckCmd(state),
		newPurgeCmd(state),
		newRestoreCmd(state),
		newSweepCmd(state),
		newTokenCmd(state),
	)

	return root
}

func (s *cliState) openCore(ctx context.Context) (*app.Core, error) {
	core, err := app.OpenCore(ctx, s.cfg, s.logger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return core, nil
}

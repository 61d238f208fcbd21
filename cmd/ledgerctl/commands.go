package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"contract-ledger/internal/model"
	"contract-ledger/internal/service"
)

func newListCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the ledger, oldest deletion first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := state.openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()

			return printView(cmd.OutOrStdout(), state.output, core.Ledger.View())
		},
	}
}

// check loads the persisted chain, which repairs and rewrites it when needed,
// and reports the resulting shape.
func newCheckCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load the ledger, repairing a damaged chain, and report its shape",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			core, err := state.openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()

			return printResult(cmd.OutOrStdout(), state.output, map[string]any{
				"count": core.Ledger.Len(),
				"head":  core.Ledger.Head(),
				"tail":  core.Ledger.Tail(),
			})
		},
	}
}

func newPurgeCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <id>",
		Short: "Permanently remove a deleted contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, err := state.openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()

			purged := core.Ledger.Purge(cmd.Context(), strings.TrimSpace(args[0]))
			return printResult(cmd.OutOrStdout(), state.output, model.PurgeResponse{Purged: purged})
		},
	}
}

func newRestoreCmd(state *cliState) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Move a deleted contract back into a user's active contracts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(user) == "" {
				return fmt.Errorf("--user is required")
			}

			core, err := state.openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()

			record, ok := core.Ledger.Restore(cmd.Context(), strings.TrimSpace(args[0]), core.Contracts.ForUser(user))
			resp := model.RestoreResponse{Restored: ok}
			if ok {
				resp.Record = &record
			}
			return printResult(cmd.OutOrStdout(), state.output, resp)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user key (token subject) owning the active collection")
	return cmd
}

func newSweepCmd(state *cliState) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Drop records deleted longer ago than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan > 0 {
				state.cfg.LedgerRetention = olderThan
			}
			if state.cfg.LedgerRetention <= 0 {
				return fmt.Errorf("no retention window: set LEDGER_RETENTION or --older-than")
			}

			core, err := state.openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer core.Close()

			removed := core.Ledger.Sweep(cmd.Context())
			return printResult(cmd.OutOrStdout(), state.output, map[string]any{"removed": removed})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override LEDGER_RETENTION for this run")
	return cmd
}

func newTokenCmd(state *cliState) *cobra.Command {
	var (
		claims model.AuthClaims
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token with JWT_SECRET for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(claims.UserID) == "" {
				return fmt.Errorf("--sub is required")
			}

			token, err := service.NewAuthService(state.cfg.JWTSecret).IssueToken(claims, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&claims.UserID, "sub", "", "token subject (user key)")
	cmd.Flags().StringVar(&claims.Username, "username", "", "username claim")
	cmd.Flags().StringVar(&claims.Role, "role", "editor", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

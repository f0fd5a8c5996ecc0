package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"monsweeper-backend/internal/config"
	"monsweeper-backend/internal/services"
)

func newTokenCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a player",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user must be positive")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, session, err := services.NewJWTService(cfg).GenerateToken(userID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"token":   token,
				"session": session,
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "player id")
	return cmd
}

func newBankrollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bankroll",
		Short: "Inspect or fund the house bankroll",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the current bankroll",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store services.Store) error {
				bankroll, err := store.GetBankroll(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int64{"bankroll": bankroll})
			})
		},
	}

	var amount int64
	fund := &cobra.Command{
		Use:   "fund",
		Short: "Add funds to the bankroll",
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount <= 0 {
				return fmt.Errorf("--amount must be positive")
			}
			return withStore(cmd.Context(), func(ctx context.Context, store services.Store) error {
				bankroll, err := store.FundBankroll(ctx, amount)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]int64{"bankroll": bankroll})
			})
		},
	}
	fund.Flags().Int64Var(&amount, "amount", 0, "amount in smallest units")

	cmd.AddCommand(show, fund)
	return cmd
}

func newDepositCmd() *cobra.Command {
	var userID, amount int64

	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Credit a player's wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store services.Store) error {
				wallet, err := store.Deposit(ctx, userID, amount)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), wallet.Response())
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "player id")
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount in smallest units")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func withStore(ctx context.Context, fn func(context.Context, services.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreBackend == config.StoreMemory {
		return fmt.Errorf("STORE_BACKEND=memory has no shared state to operate on")
	}
	store, err := services.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store)
}

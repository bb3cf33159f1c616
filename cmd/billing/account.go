package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"alchemyst.ke/billing/internal/app"
	"alchemyst.ke/billing/internal/auth"
	"alchemyst.ke/billing/internal/common"
	"alchemyst.ke/billing/internal/config"
	"alchemyst.ke/billing/internal/features/accounts"
	"alchemyst.ke/billing/internal/features/wallet"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage marketplace accounts",
}

var (
	accountCategory string
	accountProfile  string
	tokenTTL        time.Duration
)

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account and print an access token",
	Long: `Create an account with an empty wallet and no package.

Examples:
  billing account create --category escort --profile profile.json
  billing account create --category spa --ttl 24h`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StorageDriver != config.StoragePostgres {
			return errors.New("account create needs STORAGE_DRIVER=postgres")
		}

		category, err := accounts.ParseCategory(accountCategory)
		if err != nil {
			return err
		}

		var profile accounts.Profile
		if accountProfile != "" {
			raw, err := os.ReadFile(accountProfile)
			if err != nil {
				return fmt.Errorf("read profile: %w", err)
			}
			if err := json.Unmarshal(raw, &profile); err != nil {
				return fmt.Errorf("parse profile: %w", err)
			}
		}

		storage, err := app.OpenStorage(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer storage.Close()

		acc := accounts.New(category, profile)
		acc.Wallet.Currency = cfg.WalletCurrency
		if err := storage.Accounts.Create(cmd.Context(), acc); err != nil {
			return fmt.Errorf("create account: %w", err)
		}

		token, err := auth.IssueToken(cfg.JWTSecret, acc.ID, tokenTTL)
		if err != nil {
			return err
		}

		fmt.Printf("Account: %s (%s, active=%t)\n", acc.ID, acc.Category, acc.IsActive)
		fmt.Printf("Token:   %s\n", token)
		return nil
	},
}

var accountTokenCmd = &cobra.Command{
	Use:   "token [account-id]",
	Short: "Issue an access token for an existing account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid account ID: %w", err)
		}
		token, err := auth.IssueToken(cfg.JWTSecret, id, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var accountReconcileCmd = &cobra.Command{
	Use:   "reconcile [account-id]",
	Short: "Compare a wallet balance with the sum of its payment history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid account ID: %w", err)
		}
		if cfg.StorageDriver != config.StoragePostgres {
			return errors.New("account reconcile needs STORAGE_DRIVER=postgres")
		}

		storage, err := app.OpenStorage(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer storage.Close()

		rec, err := wallet.NewService(storage.Accounts, nil).Reconcile(cmd.Context(), id)
		if err != nil {
			return err
		}

		fmt.Printf("Balance:    %s\n", common.FormatAmount(rec.Balance, cfg.WalletCurrency))
		fmt.Printf("Ledger sum: %s (%d entries)\n", common.FormatAmount(rec.LedgerSum, cfg.WalletCurrency), rec.Entries)
		if !rec.Consistent {
			return fmt.Errorf("account %s: balance does not match payment history", id)
		}
		fmt.Println("Consistent: yes")
		return nil
	},
}

func init() {
	accountCreateCmd.Flags().StringVar(&accountCategory, "category", "", "escort, masseuse, of-model or spa")
	accountCreateCmd.Flags().StringVar(&accountProfile, "profile", "", "path to a profile JSON file")
	_ = accountCreateCmd.MarkFlagRequired("category")

	for _, c := range []*cobra.Command{accountCreateCmd, accountTokenCmd} {
		c.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "token lifetime")
	}

	accountCmd.AddCommand(accountCreateCmd)
	accountCmd.AddCommand(accountTokenCmd)
	accountCmd.AddCommand(accountReconcileCmd)
}

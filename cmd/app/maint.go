package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vpn-key-subscription/internal/config"
	"vpn-key-subscription/internal/infra/api"
	"vpn-key-subscription/internal/usecase"
)

func migrateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the ledger schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			st, err := openStores(ctx, cfg, logger)
			if err != nil {
				return err
			}
			st.close()
			logger.Info().Str("driver", cfg.Database.Driver).Msg("schema applied")
			return nil
		},
	}
}

func sweepCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Deactivate expired credentials and expire overdue payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReconciler(f, func(ctx context.Context, uc usecase.ReconcilerUseCase) (any, error) {
				return uc.Sweep(ctx)
			})
		},
	}
}

func cleanupCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete inactive trial credentials past the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReconciler(f, func(ctx context.Context, uc usecase.ReconcilerUseCase) (any, error) {
				n, err := uc.Cleanup(ctx)
				return map[string]int64{"deleted": n}, err
			})
		},
	}
}

func statsCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print credential and payment status counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReconciler(f, func(ctx context.Context, uc usecase.ReconcilerUseCase) (any, error) {
				return uc.Stats(ctx)
			})
		},
	}
}

func tokenCmd(f *rootFlags) *cobra.Command {
	var operator string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(f.configPath, f.dev)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			tok, err := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Mint(operator)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVarP(&operator, "operator", "o", "", "operator name recorded on approvals")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}

// withReconciler opens the store, runs fn once and prints its result as JSON.
func withReconciler(f *rootFlags, fn func(ctx context.Context, uc usecase.ReconcilerUseCase) (any, error)) error {
	cfg, logger, err := loadConfig(f)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	uc := usecase.NewReconcilerUseCase(st.creds, st.payments, cfg.Credentials.Retention, nil, logger)
	out, err := fn(ctx, uc)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"fmt"

	"invoice-payment-service/config"
	pgStorage "invoice-payment-service/internal/adapter/storage/postgres"
	"invoice-payment-service/pkg/logger"

	"github.com/spf13/cobra"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [command] [args...]",
		Short: "Run goose migrations against the configured PostgreSQL database",
		Long: "Run goose migrations against the configured PostgreSQL database.\n" +
			"Commands: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version.\n" +
			"Defaults to \"up\".",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			command := "up"
			if len(args) > 0 {
				command, args = args[0], args[1:]
			}

			log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
			pool, err := pgStorage.NewPool(cmd.Context(), cfg.Database, log)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			if err := pgStorage.Migrate(cmd.Context(), pool, command, args...); err != nil {
				return err
			}
			log.Info().Str("command", command).Msg("migration finished")
			return nil
		},
	}
}

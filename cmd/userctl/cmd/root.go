package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shion-ptpe/oauth/internal/config"
	"github.com/shion-ptpe/oauth/internal/db"
	"github.com/shion-ptpe/oauth/internal/logger"
	"github.com/shion-ptpe/oauth/internal/user"
)

// Store is what the commands need from the user table.
type Store interface {
	user.Repository
	Create(ctx context.Context, subjectID string) (*user.User, error)
}

var (
	envFiles []string
	logLevel string

	// openStore is replaced in tests.
	openStore = func(ctx context.Context, cfg config.DatabaseConfig) (Store, func() error, error) {
		database, err := db.Open(ctx, cfg.DatabaseDSN, startupWait)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, database.DB); err != nil {
			_ = database.Close()
			return nil, nil, err
		}
		return user.NewPostgresRepository(database), database.Close, nil
	}

	store      Store
	closeStore func() error

	rootCmd = &cobra.Command{
		Use:           "userctl",
		Short:         "Manage users that may sign in through the authorization server",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadDatabase(envFiles...)
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if logLevel != "" {
				level = logLevel
			}
			if err := logger.Init(level, "console"); err != nil {
				return err
			}

			store, closeStore, err = openStore(cmd.Context(), cfg)
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if closeStore == nil {
				return nil
			}
			return closeStore()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load before the environment (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "overrides LOG_LEVEL")

	rootCmd.AddCommand(createCmd, showCmd, unlinkCmd)
}

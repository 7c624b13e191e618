package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/recircuit/internal/store"
)

// DatabaseConfig holds the database flags shared by migrate and user.
type DatabaseConfig struct {
	Driver        string
	URL           string
	EncryptionKey string
}

func addDatabaseFlags(cmd *cobra.Command, config *DatabaseConfig) {
	cmd.Flags().StringVar(&config.Driver, "database-driver", store.DriverPostgres, "Database driver: pgx or sqlite. Can also use DATABASE_DRIVER env var.")
	cmd.Flags().StringVar(&config.URL, "database-url", "", "Postgres DSN or SQLite path. Can also use DATABASE_URL or POSTGRES_DSN env vars.")
}

// loadDatabaseEnvVars applies the environment unless a flag was set.
func loadDatabaseEnvVars(cmd *cobra.Command, config *DatabaseConfig) {
	if !cmd.Flags().Changed("database-driver") {
		if driver := firstEnv("DATABASE_DRIVER"); driver != "" {
			config.Driver = driver
		}
	}
	if !cmd.Flags().Changed("database-url") {
		if dsn := firstEnv("DATABASE_URL", "POSTGRES_DSN"); dsn != "" {
			config.URL = dsn
		}
	}
	config.EncryptionKey = firstEnv("ENCRYPTION_KEY")
}

// openDatabase opens the store and applies the schema.
func openDatabase(ctx context.Context, config DatabaseConfig) (*store.Store, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("database URL is required (--database-url or DATABASE_URL)")
	}
	key, err := store.KeyFromBase64(config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}

	db, err := store.Open(ctx, store.Config{
		Driver:        config.Driver,
		URL:           config.URL,
		EncryptionKey: key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/MarcoPoloResearchLab/syncreset/internal/config"
	"github.com/MarcoPoloResearchLab/syncreset/internal/database"
	"github.com/MarcoPoloResearchLab/syncreset/internal/logging"
	"github.com/MarcoPoloResearchLab/syncreset/internal/resets"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCommand(config.NewViper()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(configViper *viper.Viper) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:          "syncreset",
		Short:        "Inspect and manage the pending client reset marker",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(configViper, cfgFile)
		},
	}

	defaults := config.NewViper()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.GetString("log.format"), "Log format (json, console)")
	flags.String("signing-secret", "", "Operator token signing secret (overrides env)")
	flags.Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Operator token TTL in minutes")

	bindFlag(configViper, flags.Lookup("database-path"), "database.path")
	bindFlag(configViper, flags.Lookup("log-level"), "log.level")
	bindFlag(configViper, flags.Lookup("log-format"), "log.format")
	bindFlag(configViper, flags.Lookup("signing-secret"), "auth.signing_secret")
	bindFlag(configViper, flags.Lookup("token-ttl-minutes"), "auth.token_ttl_minutes")

	rootCmd.AddCommand(
		newServeCommand(configViper),
		newStatusCommand(configViper),
		newTrackCommand(configViper),
		newClearCommand(configViper),
		newDBCommand(configViper),
		newTokenCommand(configViper),
	)
	return rootCmd
}

func initConfig(configViper *viper.Viper, cfgFile string) error {
	if cfgFile == "" {
		return nil
	}
	configViper.SetConfigFile(cfgFile)
	if err := configViper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", cfgFile, err)
	}
	return nil
}

// commandRuntime bundles what every database-backed command needs.
type commandRuntime struct {
	config  config.AppConfig
	logger  *zap.Logger
	service *resets.Service
}

func openRuntime(ctx context.Context, configViper *viper.Viper, events resets.EventPublisher) (*commandRuntime, func(), error) {
	appConfig, err := config.Load(configViper)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFormat)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.OpenSQLite(ctx, appConfig.DatabasePath, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	closeFn := func() {
		_ = sqlDB.Close()
		_ = logger.Sync()
	}

	service, err := resets.NewService(resets.ServiceConfig{
		Database: db,
		Logger:   logger,
		Events:   events,
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	return &commandRuntime{config: appConfig, logger: logger, service: service}, closeFn, nil
}

func bindFlag(configViper *viper.Viper, flag *pflag.Flag, key string) {
	if err := configViper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

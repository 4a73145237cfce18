// Package cmd provides the catalogctl commands.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/skuindex/internal/app"
	"github.com/kailas-cloud/skuindex/internal/config"
	logpkg "github.com/kailas-cloud/skuindex/internal/logger"
	"github.com/kailas-cloud/skuindex/internal/version"
)

// globalOptions override the loaded config for one invocation.
type globalOptions struct {
	env        string
	driver     string
	indexPath  string
	catalogDSN string
	dictionary string
	logLevel   string
}

// NewRootCmd creates the root command for catalogctl.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "catalogctl",
		Short: "Administer the skuindex catalog and search index",
		Long: `catalogctl seeds the catalog, runs searches against both index layouts,
and drives the sync outbox by hand.

Configuration is read from config/<env>.yaml; flags override single settings.`,
		Version:      version.String(),
		SilenceUsage: true,
	}
	cmd.SetVersionTemplate("catalogctl version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.env, "env", config.GetEnv(), "Config environment (local, dev, prod)")
	cmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "Override database.driver (redis, bleve)")
	cmd.PersistentFlags().StringVar(&opts.indexPath, "index-path", "", "Override database.path for the bleve driver")
	cmd.PersistentFlags().StringVar(&opts.catalogDSN, "catalog", "", "Override catalog.dsn")
	cmd.PersistentFlags().StringVar(&opts.dictionary, "dictionary", "", "Override dictionary.path")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	cmd.AddCommand(newSeedCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newLegacyCmd(opts))
	cmd.AddCommand(newCatalogSearchCmd(opts))
	cmd.AddCommand(newReindexCmd(opts))
	cmd.AddCommand(newRelayCmd(opts))
	cmd.AddCommand(newNotifyCmd(opts))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *globalOptions) config(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(o.env)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if o.driver != "" {
		cfg.Database.Driver = o.driver
	}
	if flags.Changed("index-path") {
		cfg.Database.Path = o.indexPath
	}
	if flags.Changed("catalog") {
		cfg.Catalog.DSN = o.catalogDSN
	}
	if flags.Changed("dictionary") {
		cfg.Dictionary.Path = o.dictionary
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// open builds the application for one command. The caller closes it.
func (o *globalOptions) open(ctx context.Context, cmd *cobra.Command) (*app.App, *zap.Logger, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logpkg.NewLogger(loggerEnv(o.env), o.logLevel)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

// loggerEnv maps unknown environments to the console encoder.
func loggerEnv(env string) string {
	if env == "prod" {
		return env
	}
	return "local"
}

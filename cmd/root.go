// Package cmd defines the CLI commands for the magazine executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-cms/internal/config"
	"github.com/JakeFAU/magazine-cms/internal/server"
)

// cliEnv carries the loaded configuration and root logger to subcommands.
type cliEnv struct {
	cfg    *config.Config
	logger *zap.Logger
}

type cliEnvKey struct{}

// newRootCmd creates the root command. Configuration is loaded once in
// PersistentPreRunE and handed to subcommands through the command context.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "magazine",
		Short: "Content backend for the magazine website.",
		Long: `magazine serves the article and category API used by the magazine
frontend and renders Open Graph previews for social media crawlers.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := server.NewLogger(&cfg)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), cliEnvKey{}, &cliEnv{cfg: &cfg, logger: logger}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); MAGAZINE_* environment variables override it")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

func resolveRuntime(ctx context.Context) (*cliEnv, error) {
	rt, ok := ctx.Value(cliEnvKey{}).(*cliEnv)
	if !ok || rt == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return rt, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Package cli assembles the cobra command tree that drives the bot:
// monitor, buy, proxy, session, config, validate, generate and credentials
// subcommands, each wired to the already-built domain packages. Grounded
// on the teacher's warren CLI (root command with persistent flags,
// cobra.OnInitialize for logging, one constructor function returning a
// *cobra.Command per subcommand, RunE returning a wrapped error for cobra
// to print).
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relaysix/lazabot/internal/config"
	"github.com/relaysix/lazabot/internal/logging"
)

var (
	// Version is set via ldflags at build time.
	Version = "dev"

	cfgPath string
	logLvl  string
)

// RootCmd returns the fully-wired root command. main() calls Execute on it.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "lazabot",
		Short:   "Flash-sale monitoring and checkout automation",
		Version: Version,
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a TOML or YAML config file")
	root.PersistentFlags().StringVar(&logLvl, "log-level", "info", "log level (debug, info, warn, error)")

	cobra.OnInitialize(func() {
		logging.Setup(logLvl, 1000)
	})

	root.AddCommand(newMonitorCmd())
	root.AddCommand(newBuyCmd())
	root.AddCommand(newProxyCmd())
	root.AddCommand(newSessionCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newGenerateCmd())
	root.AddCommand(newCredentialsCmd())

	return root
}

// loadConfig loads the config at --config, falling back to Defaults
// overlaid with environment variables when no path is given.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

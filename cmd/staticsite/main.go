package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikecbrant/secure-static-site/internal/utils/logging"
)

var rootCfg struct {
	configPath string
	verbose    bool
	jsonLogs   bool
}

func newRootCmd() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:           "staticsite",
		Short:         "Validate, plan, deploy and smoke-test a secure static site",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&rootCfg.configPath, "config", "c", "site.yaml", "Site config file (YAML or JSON)")
	flags.BoolVarP(&rootCfg.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&rootCfg.jsonLogs, "json-logs", false, "Emit logs as JSON")

	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newSmokeCmd())
	return rootCmd
}

// newLogger builds the zap logger for a command run; callers sync it on exit.
func newLogger() (*zap.Logger, logging.Logger, error) {
	zl, err := logging.NewCLILogger(rootCfg.verbose, rootCfg.jsonLogs)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return zl, logging.NewZap(zl), nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

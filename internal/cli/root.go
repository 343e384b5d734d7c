// Package cli provides the command-line interface for the FinSight agent.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// optionsKey is used to store options in context.
type optionsKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile, envFile string

	rootCmd := &cobra.Command{
		Use:   "finsight",
		Short: "FinSight dashboard agent",
		Long: `finsight keeps the FinSight dashboard's data in sync with the analytics API.

It polls dashboard, operations and risk data, drives debounced client search
and paging, persists dashboard settings, and serves all of it on a local API.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			opts, err := LoadOptions(cfgFile, envFile, cmd.Flags())
			if err != nil {
				return err
			}
			level, _ := ParseLevel(opts.LogLevel)
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			if opts.ConfigFile != "" {
				slog.Debug("cli: using config file", "path", opts.ConfigFile)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), optionsKey{}, opts))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./"+DefaultConfigFile+")")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file to read before the environment")
	pf.String("api-url", "", "FinSight API base URL (default "+DefaultAPIURL+")")
	pf.Duration("timeout", 0, "per-request timeout")
	pf.String("log-level", "", "log level (debug|info|warn|error)")
	pf.StringP("output", "o", "", "output format (table|json)")
	pf.String("storage", "", "settings backend (file|memory|redis|sqlite)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{OutputTable, OutputJSON}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("storage", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{BackendFile, BackendMemory, BackendRedis, BackendSQLite}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newDashboardCommand())
	rootCmd.AddCommand(newRiskCommand())
	rootCmd.AddCommand(newOperationsCommand())
	rootCmd.AddCommand(newClientsCommand())
	rootCmd.AddCommand(newTransactionsCommand())
	rootCmd.AddCommand(newPredictCommand())
	rootCmd.AddCommand(newSettingsCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetOptions retrieves the options from the command context.
func GetOptions(ctx context.Context) *Options {
	if o, ok := ctx.Value(optionsKey{}).(*Options); ok {
		return o
	}
	return DefaultOptions()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "finsight v%s (%s)\n", Version, GitCommit)
		},
	}
}

// Package cli implements the classiflow command line.
package cli

import (
	"fmt"
	"os"

	"github.com/koustreak/classiflow/internal/config"
	"github.com/spf13/cobra"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// options holds the persistent flags.
type options struct {
	configPath  string
	apiURL      string
	consoleHost string
	logLevel    string
	output      string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "classiflow",
		Short:         "Classify database tables and ship schema changes",
		Long:          "classiflow assigns data classifications to tables and columns and turns SQL into change issues on the change-management service.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(opts.output); err != nil {
				return err
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}

			// flag > env > file > default
			flags := cmd.Flags()
			if flags.Changed("api-url") {
				cfg.API.BaseURL = opts.apiURL
			}
			if flags.Changed("console-host") {
				cfg.Console.Host = opts.consoleHost
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = opts.logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "classiflow.yaml", "Path to the YAML config file")
	pf.StringVar(&opts.apiURL, "api-url", "", "Change-management service base URL")
	pf.StringVar(&opts.consoleHost, "console-host", "", "Console host used in issue links")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error, disabled)")
	pf.StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")

	root.AddCommand(
		newServeCmd(opts),
		newTablesCmd(opts),
		newClassificationsCmd(opts),
		newClassifyCmd(opts),
		newDatabasesCmd(opts),
		newCheckCmd(opts),
		newIssueCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

func validateOutputFormat(output string) error {
	if output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

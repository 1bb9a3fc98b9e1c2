// Package cmd holds the briar command line: the HTTP/CDC server, migrations and operator jobs.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file loaded before the environment")
}

var rootCmd = &cobra.Command{
	Use:           "briar",
	Short:         "Briar keeps the reference, locator and edge indices of a document store consistent",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			return os.Setenv("ENV_FILE", envFile)
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "ekyc",
		Short:         "Run eKYC verification checks and decisions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults to $EKYC_CONFIG_FILE)")

	rootCmd.AddCommand(verifyCmd(&configPath))
	rootCmd.AddCommand(decideCmd(&configPath))

	return rootCmd
}

package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "devdata",
	Short: "Generate legacy datasets for development",
	Long:  "devdata writes synthetic legacy key-value stores so the migrator can be run and profiled without real user data.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

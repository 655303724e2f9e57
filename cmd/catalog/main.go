package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/b2b-storefront/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Drive the storefront catalog flow from the command line",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadEnv()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

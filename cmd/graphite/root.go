// Command graphite is the entry point for running tile-based multicore
// architectural simulations from the command line.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "graphite",
	Short: "Graphite runs tile-based multicore architectural simulations.",
	Long: `Graphite is a tile-based multicore architectural simulator: each ` +
		`tile models its core's instruction timing, its instruction and data ` +
		`caches, and exchanges messages with other tiles, while a shared ` +
		`directory tracks which tiles hold each cached line.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeycin/Graphite/config"
)

var configEnvFile string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration after defaults and overrides are applied.",
	RunE:  runConfig,
}

func init() {
	configCmd.Flags().StringVar(&configEnvFile, "env", "", "path to a .env file of configuration overrides")
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(configEnvFile)
	if err != nil {
		return err
	}

	fmt.Printf("%+v\n", cfg)

	return nil
}

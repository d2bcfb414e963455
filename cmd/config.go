package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  "Prints the configuration after prg-convert.yaml, PRG_* environment variables and defaults are merged.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return eris.Wrap(err, "config: encode")
		}
		if err := enc.Close(); err != nil {
			return eris.Wrap(err, "config: encode")
		}

		validate, _ := cmd.Flags().GetBool("validate")
		if validate {
			return cfg.Validate()
		}
		return nil
	},
}

func init() {
	configCmd.Flags().Bool("validate", false, "also validate the configuration")
	rootCmd.AddCommand(configCmd)
}

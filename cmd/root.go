package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/prg-convert/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "prg-convert",
	Short: "Convert PRG address points to CSV or GeoParquet",
	Long: `Streams address points out of PRG distributions (XML schema 2012, GML schema 2021),
normalizes them into one flat record, resolves administrative names from the TERYT
TERC dictionary and writes the result as CSV or GeoParquet.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/concierge/internal/config"
	"github.com/aretw0/concierge/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "Concierge runs support-chat scenarios",
	Long: `Concierge stores support-chat scenarios, validates them, imports exports
of the legacy widget editor and drives visitor conversations through them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFiles, _ := cmd.Flags().GetStringSlice("env")
		loaded, err := config.Load(envFiles...)
		if err != nil {
			return err
		}
		if dir, _ := cmd.Flags().GetString("dir"); cmd.Flags().Changed("dir") {
			loaded.DataDir = dir
		}
		if storage, _ := cmd.Flags().GetString("storage"); cmd.Flags().Changed("storage") {
			loaded.Storage = storage
		}
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			loaded.LogLevel = slog.LevelDebug
		}
		cfg = loaded
		logger = logging.ForFormat(cfg.LogFormat, cfg.LogLevel)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSlice("env", nil, "Dotenv files to load (default .env)")
	rootCmd.PersistentFlags().String("dir", "", "Data directory of the file storage")
	rootCmd.PersistentFlags().String("storage", "", "Storage backend: memory, file or postgres")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/concierge"
	"github.com/aretw0/concierge/internal/importer"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <export.json>",
	Short: "Import a scenario exported by the legacy widget editor",
	Long: `Converts a legacy editor export into a scenario and stores it. Importing
again under the same name updates the existing scenario and keeps node IDs stable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
		description, _ := cmd.Flags().GetString("description")

		var opts []importer.Option
		if phrase, _ := cmd.Flags().GetString("restart-phrase"); phrase != "" {
			opts = append(opts, importer.WithRestartPhrase(phrase))
		}
		if legacy, _ := cmd.Flags().GetBool("legacy-depth"); legacy {
			opts = append(opts, importer.WithLegacyDepthLimit(importer.LegacyDepthLimit))
		}
		opts = append(opts, importer.WithLogger(logger))

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		doc, err := concierge.DecodeLegacy(f)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		a, err := newApp(cmd.Context(), cfg, concierge.WithImportOptions(opts...))
		if err != nil {
			return err
		}
		defer a.Close()

		sc, report, err := a.engine.ImportLegacyScenario(cmd.Context(), name, description, doc)
		if report != nil {
			if perr := printValue(cmd, report); perr != nil {
				return perr
			}
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Imported scenario %s (%s) version %d\n", sc.ID, sc.Name, sc.Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringP("name", "n", "", "Scenario name (default: file name)")
	importCmd.Flags().StringP("description", "d", "", "Scenario description")
	importCmd.Flags().String("restart-phrase", "", "Reply text treated as a restart (default \"restart\")")
	importCmd.Flags().Bool("legacy-depth", false, "Truncate below the first response like the old importer")
}

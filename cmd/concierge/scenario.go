package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/concierge/internal/compiler"
	"github.com/aretw0/concierge/internal/validator"
	"github.com/aretw0/concierge/pkg/domain"
	"github.com/spf13/cobra"
)

var scenarioCmd = &cobra.Command{
	Use:     "scenario",
	Aliases: []string{"sc"},
	Short:   "Manage stored scenarios",
}

var scenarioLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.engine.ListScenarios(cmd.Context())
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
			return nil
		}
		for _, s := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tv%d\t%d nodes\n", s.ID, s.Name, s.Version, s.NodeCount)
		}
		return nil
	},
}

var scenarioShowCmd = &cobra.Command{
	Use:   "show <scenario-id>",
	Short: "Print a stored scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		sc, err := a.engine.GetScenario(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printValue(cmd, sc)
	},
}

var scenarioSaveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Validate and store a scenario file (YAML or JSON)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := readScenario(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		saved, findings, err := a.engine.SaveScenario(cmd.Context(), sc)
		printFindings(cmd, findings)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved scenario %s (%s) version %d\n", saved.ID, saved.Name, saved.Version)
		return nil
	},
}

var scenarioRmCmd = &cobra.Command{
	Use:   "rm <scenario-id>...",
	Short: "Remove one or more scenarios",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var errs []error
		for _, id := range args {
			if err := a.engine.DeleteScenario(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", id, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed scenario '%s'\n", id)
		}
		return errors.Join(errs...)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a scenario file without storing it",
	Long:  `Parses a YAML or JSON scenario and reports structural errors and warnings.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := readScenario(args[0])
		if err != nil {
			return err
		}
		findings := validator.Validate(sc)
		printFindings(cmd, findings)
		if validator.HasErrors(findings) {
			return fmt.Errorf("%w: %d error(s)", domain.ErrInvalidScenario,
				len(validator.Errors(findings, domain.SeverityError)))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Scenario is valid.")
		return nil
	},
}

func readScenario(path string) (*domain.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := compiler.NewParser().Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

func printFindings(cmd *cobra.Command, findings []domain.ValidationError) {
	for _, f := range findings {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\t%s\n", f.Severity, f.Error())
	}
}

func init() {
	rootCmd.AddCommand(scenarioCmd, validateCmd)
	scenarioCmd.AddCommand(scenarioLsCmd, scenarioShowCmd, scenarioSaveCmd, scenarioRmCmd)
}

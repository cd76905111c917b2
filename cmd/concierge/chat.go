package main

import (
	"os"

	"github.com/aretw0/concierge/pkg/runner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var chatCmd = &cobra.Command{
	Use:   "chat <scenario-id>",
	Short: "Talk to a scenario from the terminal",
	Long: `Runs a conversation against a stored scenario. Numbers pick a button,
"/restart" starts over and anything else is sent as free text. When stdin is
not a terminal, or with --json, events and results are exchanged as NDJSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		jsonMode, _ := cmd.Flags().GetBool("json")
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			jsonMode = true
		}
		runner.DefaultMaxInputSize = cfg.MaxInputSize

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var handler runner.IOHandler
		if jsonMode {
			handler = runner.NewJSONHandler(cmd.InOrStdin(), cmd.OutOrStdout())
		} else {
			handler = runner.NewTextHandler(cmd.InOrStdin(), cmd.OutOrStdout())
		}

		logger.Debug("chat session", "session_id", sessionID, "scenario_id", args[0])
		return runner.New(a.engine, handler, sessionID, args[0], runner.WithLogger(logger)).Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("session", "s", "", "Session ID (default: a new one)")
	chatCmd.Flags().Bool("json", false, "Exchange NDJSON instead of text")
}

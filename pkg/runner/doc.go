/*
Package runner drives a conversation from a console.

The Runner alternates between the engine and an IOHandler: it advances the
session, lets the handler present the result, reads the next event and
repeats until the conversation closes, is handed off or input ends.

# Key Components

  - Runner: the loop. It turns input and structural errors into system
    messages instead of stopping.
  - TextHandler: numbered options for humans. A number picks a branch,
    "/restart" starts over, anything else is free text.
  - JSONHandler: one Result per line out, one Event per line in.

# Usage

	r := runner.New(eng, runner.NewTextHandler(os.Stdin, os.Stdout), "visitor-1", scenarioID)
	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner

/*
Package concierge runs the scenario graphs behind a customer-support chat.

A scenario is a graph of dialogue nodes (start, message, question, condition,
action, end) joined by branches, tree edges or editor connections. Given a
visitor's session and their latest input, the engine decides which node to
show next and which side effects the host must perform: open a link, hand the
visitor to a human, send a notification, or close the conversation.

# Architecture

The traversal core is pure and synchronous. Engine wraps it with the ports it
needs: a ports.ScenarioRepository for scenarios, a ports.SessionStore for
sessions, a ports.Emitter for side effects and an optional
ports.DistributedLocker so that the events of one session are processed in
order across replicas. Everything defaults to memory.

# Usage

	eng, err := concierge.New()
	if err != nil {
		log.Fatal(err)
	}

	b := dsl.New("support")
	b.Start("start").Go("welcome")
	b.Question("welcome").Say("How can we help?").Button("billing", "Billing", "billing")
	b.Message("billing").Say("Invoices are sent monthly.")

	saved, findings, err := eng.SaveScenario(ctx, b.Scenario())
	if errors.Is(err, domain.ErrInvalidScenario) {
		for _, f := range findings {
			log.Println(f)
		}
		return
	}

	res, err := eng.Advance(ctx, "visitor-42", saved.ID, domain.Start())
	for _, r := range res.Current().Responses {
		fmt.Println(r.Text)
	}

	res, err = eng.Advance(ctx, "visitor-42", saved.ID, domain.SelectBranch("billing"))

Structural problems never crash a session: Advance returns the error together
with a Result whose session stays on its node and records a diagnostic.
*/
package concierge

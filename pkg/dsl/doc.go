/*
Package dsl provides a fluent Go builder for support scenarios.

It is handy for tests, demos and scenarios generated by code, where writing
YAML or driving the editor would be awkward.

Example usage:

	b := dsl.New("support")

	b.Start("start").Go("welcome")

	b.Question("welcome").
		Named("welcome").
		Say("Hi! What do you need?").
		Button("faq", "FAQ", "answers").
		Link("docs", "Docs", "https://example.com/docs", true).
		Button("human", "Talk to someone", "handoff")

	b.Message("answers").Say("Here are the answers.").Go("bye")
	b.Action("handoff", domain.ActionTransferHuman, nil)
	b.End("bye").Say("Bye!")

	scenario, warnings, err := b.Build()
*/
package dsl

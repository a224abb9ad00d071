/*
Package dsl provides a Go DSL for programmatically constructing flow graphs.

It allows developers to define call flows using a type-safe, fluent builder
instead of YAML or JSON documents. This is useful for generated flows, tests
and IDE autocompletion.

Example usage:

	b := dsl.New("support", "Support Line")

	b.Say("start", "Thanks for calling.").Go("ask")

	b.Collect("ask", "Sales or support?").
		Input(domain.InputSpeech).
		Timeout(5 * time.Second).
		Go("route")

	b.Decision("route").
		When("sales", "to_sales").
		When("support", "to_support").
		Otherwise("bye")

	b.Transfer("to_sales", "+15550001111").Text("Connecting you to sales.")
	b.Transfer("to_support", "+15550002222").Text("Connecting you to support.")
	b.End("bye", "Goodbye.")

	graph, err := b.Build() // validated
*/
package dsl

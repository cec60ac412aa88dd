/*
Package dsl provides a fluent Go builder for funnel definitions.

It is mostly used by tests and by embedders that generate funnels in code
instead of shipping YAML files. Nodes get their ordinal position in the order
they are added.

Example usage:

	b := dsl.New("welcome")

	b.Add("hello").Message("Hi there!")
	b.Add("offer").Buttons("Interested?").
		Choice("Yes", "pay").
		Choice("Tell me more", "")
	b.Add("pause").Delay(5)
	b.Add("pay").Payment("Course", 1000, "RUB")

	loader := b.Build() // a ports.DefinitionStore
*/
package dsl

/*
Package funnel is the execution engine for conversational marketing funnels.

A funnel is an author-defined, ordered sequence of steps (MESSAGE, BUTTON,
DELAY, PAYMENT, CONDITION) that a visitor walks through inside a chat
channel. The engine receives inbound channel events, resolves the visitor's
session, advances it through the funnel graph and emits outbound actions for
the channel to render.

# Concept

Definitions are read-only: the engine never edits a funnel. Sessions are
the only mutable state, one ACTIVE session per (visitor, funnel) pair, and
every write is an optimistic compare-and-swap on the session version. Two
triggers racing on the same session have exactly one winner; the loser is
reported as stale and is meant to be dropped silently.

Delays are durable: a DELAY node persists a timer before it is armed, and
Run re-arms persisted timers after a restart, firing the overdue ones first.

# Usage

	defs := dsl.New("welcome")
	defs.Add("hello").Message("Hi!")
	defs.Add("ask").Buttons("Want the guide?").Choice("Yes", "guide")
	defs.Add("guide").Message("Here it is.")

	eng, err := funnel.New(defs.Build(), funnel.WithDeliverer(myChannel))
	if err != nil {
		log.Fatal(err)
	}
	go eng.Run(ctx)

	res, err := eng.Advance(ctx, "visitor-1", "welcome", domain.Start())
	if domain.IsStale(err) {
		return // someone else moved the session meanwhile
	}

Channel adapters for HTTP, Discord, webhooks, MCP and the terminal live in
pkg/adapters; storage adapters for memory, files, SQL and Redis too.
*/
package funnel

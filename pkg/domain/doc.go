/*
Package domain contains the core domain models of the funnel engine.

It defines the entities the engine reasons about: funnel definitions and their
nodes, visitor sessions, triggers, outcomes and pending timers. This package is
kept pure and free of I/O or persistence concerns.

# Key Entities

  - FunnelDefinition: an ordered set of Nodes plus an activation status.
  - Node: one conversational step with a strongly typed content payload.
  - VisitorSession: one visitor's progress through one funnel.
  - Trigger: an inbound event that may move a session forward.
  - Outcome: what executing a node produced (actions + continuation policy).
  - Timer: a durable pending "continue" for a delayed step.
*/
package domain

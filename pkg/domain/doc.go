/*
Package domain contains the core domain models of the dialtone engine.

It defines the conversation graph, the per-call execution context and the
instructions returned to the carrier. This package is kept pure and free of
external dependencies like I/O or persistence, following Hexagonal Architecture
principles.

# Key Entities

  - Node: A closed set of step types (Say, Collect, Decision, Transfer, Record, Pause, End).
  - FlowGraph: An immutable, versioned graph of nodes and edges.
  - Session: The runtime snapshot of one call (current node, variables, activity).
  - Instruction: What the carrier should do next (speak, gather, transfer, record, hang up).
  - RouteEntry: The binding of a dialed number to a flow.
*/
package domain

/*
Package ports defines the driven ports (interfaces) for the dialtone engine.

These interfaces decouple the call-handling core from storage and transport,
allowing the same engine to run on in-memory state for a single instance or on
shared backends (Redis, SQLite) for multi-instance deployments.

# Key Interfaces

  - SessionStore: Persists per-call Session state keyed by carrier call ID.
  - RouteStore: Persists the number-to-flow bindings of the routing registry.
  - FlowRepository: Holds immutable, versioned flow graphs.
  - DistributedLocker: Serializes mutations of one call across replicas.
  - EventPublisher: Best-effort sink for realtime monitoring events.
*/
package ports

/*
Package observability provides monitoring for the dialtone engine.

It turns lifecycle hooks into Prometheus metrics and structured log lines, and
combines several hook sets into one so the engine only carries a single
domain.LifecycleHooks value.
*/
package observability

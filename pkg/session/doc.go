/*
Package session owns the lifecycle of per-call sessions.

The Manager serializes mutations per call ID (one in-flight update per call)
while leaving unrelated calls fully concurrent. Locks are reference counted so
the lock map never outgrows the set of calls currently being worked on. When a
DistributedLocker is configured the same guarantee extends across replicas.

The Janitor periodically reclaims sessions whose last activity is older than
the configured idle timeout. Carriers do not always deliver a final status
callback, so this is the only guaranteed path to reclaim abandoned calls.
*/
package session

/*
Package session implements the per-session critical section of the engine.

Every mutation of a visitor session runs inside Manager.WithLock, keyed by the
(visitor, funnel) pair. Locks are reference counted so idle keys are garbage
collected, and an optional DistributedLocker extends the section across
replicas sharing one repository.
*/
package session

/*
Package ports defines the driven ports (interfaces) of the funnel engine.

These interfaces decouple the engine from concrete storage backends, delivery
channels and payment providers.

# Key Interfaces

  - DefinitionStore: read-only access to funnel definitions.
  - SessionRepository: durable visitor sessions with optimistic concurrency.
  - TimerStore: durable pending delays for the scheduler.
  - DistributedLocker: cross-replica critical sections.
  - Deliverer: outbound channel delivery.
  - PaymentInitiator: opens a payment for a PAYMENT node.
*/
package ports

/*
Package ports defines the driven ports (interfaces) of the concierge engine.

These interfaces decouple the scenario engine from storage backends and
delivery channels.

# Key Interfaces

  - ScenarioRepository: Persists scenarios with their nodes, atomically per save.
  - SessionStore: Persists visitor Sessions.
  - DistributedLocker: Serializes access to a session across replicas.
  - Emitter: Fire-and-forget publication of side effects.

Contract suites (RunSessionStoreContract, RunScenarioRepositoryContract) let
every adapter prove it honours the same behaviour.
*/
package ports

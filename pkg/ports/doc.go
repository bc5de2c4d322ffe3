/*
Package ports defines the driven ports (interfaces) of the cadence engine.

These interfaces decouple the runtime from external implementations, allowing
the engine to work with various program sources, checkpoint backends and hosts.

# Key Interfaces

  - ProgramLoader: loads compiled program documents (Loam, directory, memory).
  - Watchable: optional loader capability used for hot reload.
  - CheckpointStore: persists session checkpoints (memory, file, Redis, SQLite, Postgres).
  - DistributedLocker: coordinates concurrent access to one session across replicas.
  - EventDispatcher: hands fired events to the host.

Adapters verify themselves with RunCheckpointStoreContract and
RunProgramLoaderContract.
*/
package ports

// Package snapshot persists authority world snapshots.
//
// A snapshot is the opaque byte blob produced by Authority.Snapshot. Stores
// never look inside it; they file it under a caller-chosen name and hand it
// back for Authority.Restore on a cold start.
//
// # Backends
//
// MemoryStore keeps snapshots in process memory and suits tests and
// single-server setups. DiskStore writes one file per snapshot with an
// atomic rename so a crashed save never leaves a torn blob. SQLiteStore
// keeps an append-only history of every save, queryable by name and tick.
// RedisStore and S3Store share snapshots across servers.
//
// All stores are safe for concurrent use unless noted otherwise.
package snapshot

// Package cache provides the fallback stores used by the fetch layer.
//
// A Store remembers the last payload fetched under a cache key so that a
// request can still be answered when no origin responds. Two
// implementations are provided:
//   - MemoryStore: a bounded in-process LRU with a maximum entry age
//   - SQLiteStore: a persistent store (via modernc.org/sqlite) that survives
//     restarts, bounded by entry count and age
//
// Writes are last-write-wins per key and independent across keys. Both
// stores are safe for concurrent use.
//
// Every entry carries a BLAKE2b digest of its payload. SQLiteStore reads
// recompute the digest and treat a mismatch as a miss, so a corrupted row
// never reaches the assembly layer.
package cache

// Package persistence provides key/value storage backends for the listings collection,
// playing the role of browser's local storage. Each key holds one serialized value which is
// replaced as a whole on every write. Backends: json files in a directory (default), SQLite with
// WAL mode and in-memory map. Retrying wraps any of them with backoff retries.
package persistence

// Package cache defines the disk-backed entry store. Every cache key is hashed
// into a flat <CacheDir>/<hex> file; the file body is the exact payload and the
// file's ModTime/Size are the only metadata. Writes go through a temp file +
// rename so concurrent readers never observe a torn entry. The eviction sweeper
// consumes the directory primitives (List/StatName/RemoveName) exposed here
// without needing to know anything about keys.
package cache

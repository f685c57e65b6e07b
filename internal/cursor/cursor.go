// Package cursor persists, per log URL, the next tree index to fetch.
package cursor

import "context"

// Store is the capability set every cursor backend implements.
type Store interface {
	// Load returns the next index to fetch for url, and whether one was found.
	Load(ctx context.Context, url string) (int64, bool, error)
	// Advance records that index is now the next index to fetch for url.
	Advance(ctx context.Context, url string, index int64) error
	// Flush persists any buffered state. A no-op for backends that write
	// through on every Advance.
	Flush(ctx context.Context) error
	// List returns every log URL with a stored cursor.
	List(ctx context.Context) ([]string, error)
}

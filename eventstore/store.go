// Package eventstore provides the append-only document store behind the
// process event log: insert and filtered scan, with pluggable backends.
package eventstore

import "context"

// Document is a JSON-compatible record: scalars, arrays, and nested maps.
type Document map[string]any

// Store is the append-only collection contract. Document fields are
// JSON-compatible; identifiers are opaque strings. Insert never fails for a
// well-formed document other than on storage I/O errors. Find streams
// documents whose fields equal the filter's fields; ordering is unspecified
// and callers must sort by their own timestamp field.
type Store interface {
	// Insert appends doc to collection, assigning or preserving its unique
	// internal id.
	Insert(ctx context.Context, collection string, doc Document) error

	// Find streams every document in collection whose fields equal filter's
	// fields, delivering each to fn until fn returns an error or the store
	// is exhausted.
	Find(ctx context.Context, collection string, filter Document, fn func(Document) error) error

	// Close releases any underlying connection.
	Close(ctx context.Context) error
}

// ErrNotSupported is returned by backend-specific operations a given store
// does not implement.
type ErrNotSupported struct {
	Op string
}

func (e *ErrNotSupported) Error() string {
	return "eventstore: operation not supported: " + e.Op
}

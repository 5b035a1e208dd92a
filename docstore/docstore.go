/*
Package docstore implements the Document-Store Adapter (spec.md §4.8,
C8): a typed abstraction over a keyed document store. This is the one
place the logical-to-physical field-name mapping lives (spec.md §4.8
"the adapter is the one place this mapping lives").

Grounded on generic/store.go's Store/EntityStore interface split
(append-only transaction persistence) and store/sqlite/sqlite.go's
JSON-blob-plus-indexed-column technique (that file already stores
metadata_json/config_json blobs alongside indexed columns); this is
generalized into the full get/where/match/batch-write contract spec.md
§4.8 requires instead of the teacher's fixed transactions-table schema.
*/
package docstore

import (
	"context"
	"time"
)

// Op is a comparison operator for Where (spec.md §4.8).
type Op string

const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

// Doc is a document: field name -> value. Supported value types are
// string, int, int64, float64, bool, time.Time, coc.Date, []string,
// []any, map[string]any, and nil (spec.md §4.8 type mapping).
type Doc map[string]any

// WriteKind discriminates the operations batch-write can combine.
type WriteKind string

const (
	WriteCreate WriteKind = "create"
	WriteUpdate WriteKind = "update"
	WriteUpsert WriteKind = "upsert"
	WriteDelete WriteKind = "delete"
)

// WriteOp is a single operation inside an atomic batch-write
// (spec.md §4.8, required by §4.5 certification).
type WriteOp struct {
	Kind       WriteKind
	Collection string
	ID         string
	Fields     Doc // ignored for WriteDelete
}

// Store is the document-store adapter contract (spec.md §4.8).
type Store interface {
	// Get fetches a single document by id. Returns (nil, nil) if absent.
	Get(ctx context.Context, collection, id string) (Doc, error)

	// GetMany returns up to max documents in collection. max is
	// required: the adapter never loads an unbounded collection
	// (spec.md §4.8 "with required maximum").
	GetMany(ctx context.Context, collection string, max int) ([]Doc, error)

	// Where returns documents in collection matching a single
	// field/operator/value predicate, pushed down to the store
	// (spec.md §4.7 "forbidden to load-then-filter").
	Where(ctx context.Context, collection, field string, op Op, value any) ([]Doc, error)

	// Match returns documents matching the AND of all criteria
	// (equality only; spec.md §4.8).
	Match(ctx context.Context, collection string, criteria Doc) ([]Doc, error)

	// Create inserts a new document. Fails with coc.ErrAlreadyExists-
	// flavored error if id already exists in collection.
	Create(ctx context.Context, collection, id string, fields Doc) error

	// Update partially patches an existing document. Fails if absent.
	Update(ctx context.Context, collection, id string, patch Doc) error

	// Upsert creates or replaces a document wholesale.
	Upsert(ctx context.Context, collection, id string, fields Doc) error

	// Delete removes a document by id. No-op if absent.
	Delete(ctx context.Context, collection, id string) error

	// DeleteMany removes several documents by id in one call.
	DeleteMany(ctx context.Context, collection string, ids []string) error

	// MaxID returns a new value strictly greater than every existing
	// value of idField in collection, safe under concurrent writers
	// (spec.md §4.4 "monotonic identifier generator").
	MaxID(ctx context.Context, collection, idField string) (int64, error)

	// BatchWrite applies every op atomically: all-or-nothing
	// (spec.md §4.8, required by §4.5 certification and §5 batch
	// overtime writes).
	BatchWrite(ctx context.Context, ops []WriteOp) error
}

// Now is a replaceable time source defaulting to time.Now. Neither
// Memory nor SQLite reads it, and no store stamps a creation time.
var Now = func() time.Time { return time.Now() }

package types

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// DocumentRef identifies an indexed document chunk. It is immutable once
// indexed: retrieval never mutates a ref, it only copies it into results.
type DocumentRef struct {
	// ID uniquely identifies the chunk across all indexes
	ID string

	// Source is the origin of the document (file path, URL, ...)
	Source string

	// ChunkIndex is the position of this chunk within its source
	ChunkIndex int

	// Tags holds arbitrary key/value metadata attached at index time
	Tags map[string]string
}

// NewDocumentRef creates a ref for a chunk of the given source,
// minting a fresh UUID as the identifier.
func NewDocumentRef(source string, chunkIndex int) DocumentRef {
	return DocumentRef{
		ID:         uuid.NewString(),
		Source:     source,
		ChunkIndex: chunkIndex,
	}
}

// Clone returns a deep copy of the ref, including its tag map.
func (r DocumentRef) Clone() DocumentRef {
	out := r
	if r.Tags != nil {
		out.Tags = make(map[string]string, len(r.Tags))
		for k, v := range r.Tags {
			out.Tags[k] = v
		}
	}
	return out
}

// TagKeys returns the ref's tag keys in sorted order.
// Useful for deterministic serialization and logging.
func (r DocumentRef) TagKeys() []string {
	keys := make([]string, 0, len(r.Tags))
	for k := range r.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Document pairs a ref with the chunk text it refers to. Index
// implementations consume Documents at build time; query-time code only
// ever sees the ref.
type Document struct {
	Ref     DocumentRef
	Content string
}

// Validate checks that the document can be indexed.
func (d *Document) Validate() error {
	if d.Ref.ID == "" {
		return ErrMissingDocumentID
	}
	if strings.TrimSpace(d.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}

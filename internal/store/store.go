package store

import (
	"context"

	"github.com/pkg/errors"

	"closingdoors/internal/model"
)

// ErrNotFound is returned when a snapshot or metadata record has never been
// written.
var ErrNotFound = errors.New("not found")

// SnapshotStore persists one snapshot per feed under a key derived from the
// feed id. Writes replace any prior value at the key (last-write-wins); there
// is no versioning and no optimistic concurrency, consistent with the
// single-writer poll loop.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, key string, snap *model.FeedSnapshot) error
	GetSnapshot(ctx context.Context, key string) (*model.FeedSnapshot, error)
}

// MetadataStore persists the single aggregate metadata record, replaced
// wholesale each cycle.
type MetadataStore interface {
	PutMetadata(ctx context.Context, meta *model.SystemMetadata) error
	GetMetadata(ctx context.Context) (*model.SystemMetadata, error)
}

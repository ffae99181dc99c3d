package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"closingdoors/internal/model"
)

// Memory is an in-memory implementation of SnapshotStore and MetadataStore.
// Values are stored as their JSON encoding, matching the payload contract of
// the real backends.
type Memory struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	metadata  []byte
}

func NewMemory() *Memory {
	return &Memory{snapshots: map[string][]byte{}}
}

func (m *Memory) PutSnapshot(_ context.Context, key string, snap *model.FeedSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrapf(err, "encode snapshot %s", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[key] = b
	return nil
}

func (m *Memory) GetSnapshot(_ context.Context, key string) (*model.FeedSnapshot, error) {
	m.mu.RLock()
	b, ok := m.snapshots[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	var snap model.FeedSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, errors.Wrapf(err, "decode snapshot %s", key)
	}
	return &snap, nil
}

func (m *Memory) PutMetadata(_ context.Context, meta *model.SystemMetadata) error {
	b, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, "encode metadata")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata = b
	return nil
}

func (m *Memory) GetMetadata(_ context.Context) (*model.SystemMetadata, error) {
	m.mu.RLock()
	b := m.metadata
	m.mu.RUnlock()
	if b == nil {
		return nil, ErrNotFound
	}
	var meta model.SystemMetadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, errors.Wrap(err, "decode metadata")
	}
	return &meta, nil
}

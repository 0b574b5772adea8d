package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
)

var _ Transport = (*MemoryTransport)(nil)

// MemoryTransport keeps encoded documents in a map. Records go through the
// same JSON layout as the other transports so callers never share memory
// with the stored copy.
type MemoryTransport struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{docs: make(map[string][]byte)}
}

func (t *MemoryTransport) Upsert(ctx context.Context, rec *models.MatchRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.docs[rec.ID] = data
	t.mu.Unlock()
	return nil
}

func (t *MemoryTransport) Get(ctx context.Context, id string) (*models.MatchRecord, error) {
	t.mu.RLock()
	data, ok := t.docs[id]
	t.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeRecord(data)
}

func (t *MemoryTransport) Query(ctx context.Context, f Filter) ([]*models.MatchRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*models.MatchRecord
	for _, data := range t.docs {
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *MemoryTransport) Delete(ctx context.Context, ids []string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, id := range ids {
		if _, ok := t.docs[id]; ok {
			delete(t.docs, id)
			n++
		}
	}
	return n, nil
}

func (t *MemoryTransport) Close() error { return nil }

func encodeRecord(rec *models.MatchRecord) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*models.MatchRecord, error) {
	var rec models.MatchRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

package payloads

import (
	"bytes"
	"context"
	"sync"

	"github.com/dmitrijs2005/drivekeeper/internal/common"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string][]byte{}}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = bytes.Clone(data)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string, r *Range) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, common.ErrNotFound
	}
	size := int64(len(data))
	if r == nil {
		return &Object{Body: bytes.Clone(data), End: size - 1, Size: size}, nil
	}

	start, end, err := clamp(*r, size)
	if err != nil {
		return nil, err
	}
	return &Object{
		Body:    bytes.Clone(data[start : end+1]),
		Start:   start,
		End:     end,
		Size:    size,
		Partial: true,
	}, nil
}

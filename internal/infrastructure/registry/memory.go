package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/hilthontt/relay/internal/domain"
)

type memoryRegistry struct {
	descriptors map[string]domain.Descriptor // identity -> descriptor
	mu          *sync.RWMutex
}

func NewMemoryRegistry() domain.Registry {
	return &memoryRegistry{
		descriptors: make(map[string]domain.Descriptor),
		mu:          &sync.RWMutex{},
	}
}

func (r *memoryRegistry) Put(ctx context.Context, identity string, descriptor domain.Descriptor) error {
	descriptor.Identity = identity

	r.mu.Lock()
	defer r.mu.Unlock()

	r.descriptors[identity] = descriptor
	return nil
}

func (r *memoryRegistry) Get(ctx context.Context, identity string) (domain.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[identity]
	if !ok {
		return domain.Descriptor{}, domain.ErrSessionNotFound
	}
	return d, nil
}

// Delete is idempotent.
func (r *memoryRegistry) Delete(ctx context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.descriptors, identity)
	return nil
}

func (r *memoryRegistry) Exists(ctx context.Context, identity string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.descriptors[identity]
	return ok, nil
}

func (r *memoryRegistry) List(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.descriptors))
	for id := range r.descriptors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

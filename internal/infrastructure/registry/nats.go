package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/nats-io/nats.go/jetstream"
)

type natsRegistry struct {
	kv jetstream.KeyValue
}

// NewNATSRegistry stores descriptors in a JetStream key-value bucket,
// creating the bucket when it does not exist.
func NewNATSRegistry(ctx context.Context, js jetstream.JetStream, bucket string) (domain.Registry, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "relay session descriptors",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket %s: %w", bucket, err)
	}
	return &natsRegistry{kv: kv}, nil
}

func (r *natsRegistry) Put(ctx context.Context, identity string, descriptor domain.Descriptor) error {
	data, err := encode(descriptor)
	if err != nil {
		return err
	}
	if _, err := r.kv.Put(ctx, identity, data); err != nil {
		return fmt.Errorf("failed to store descriptor: %w", err)
	}
	return nil
}

func (r *natsRegistry) Get(ctx context.Context, identity string) (domain.Descriptor, error) {
	entry, err := r.kv.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return domain.Descriptor{}, domain.ErrSessionNotFound
		}
		return domain.Descriptor{}, fmt.Errorf("failed to load descriptor: %w", err)
	}
	return decode(identity, entry.Value())
}

func (r *natsRegistry) Delete(ctx context.Context, identity string) error {
	if err := r.kv.Delete(ctx, identity); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete descriptor: %w", err)
	}
	return nil
}

func (r *natsRegistry) Exists(ctx context.Context, identity string) (bool, error) {
	_, err := r.Get(ctx, identity)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrSessionNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (r *natsRegistry) List(ctx context.Context) ([]string, error) {
	lister, err := r.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list descriptors: %w", err)
	}
	defer lister.Stop()

	ids := []string{}
	for key := range lister.Keys() {
		ids = append(ids, key)
	}
	sort.Strings(ids)
	return ids, nil
}

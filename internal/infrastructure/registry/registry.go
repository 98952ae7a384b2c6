// Package registry stores session descriptors keyed by identity. The memory
// backend is process-local; the Redis and NATS KV backends are shared by all
// gateway instances.
package registry

import (
	"encoding/json"
	"fmt"

	"github.com/hilthontt/relay/internal/domain"
)

func encode(d domain.Descriptor) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal descriptor: %w", err)
	}
	return data, nil
}

func decode(identity string, data []byte) (domain.Descriptor, error) {
	var d domain.Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return domain.Descriptor{}, fmt.Errorf("%w: %v", domain.ErrInvalidDescriptor, err)
	}
	d.Identity = identity
	return d, nil
}

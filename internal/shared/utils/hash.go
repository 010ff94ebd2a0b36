package utils

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
)

// Hasher fingerprints published state so repeats can be recognized
type Hasher struct {
	api sonic.API
}

// DefaultHasher returns a hasher that encodes maps with sorted keys, so
// equal values always fingerprint equally
func DefaultHasher() *Hasher {
	return &Hasher{api: sonic.ConfigStd}
}

// Hash returns the xxhash64 digest of data
func (h *Hasher) Hash(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// HashJSON fingerprints the JSON encoding of v
func (h *Hasher) HashJSON(v interface{}) (uint64, error) {
	data, err := h.api.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return h.Hash(data), nil
}

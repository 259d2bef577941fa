package infra

import (
	"encoding/json"
)

// KVPair is a listed entry. Key is relative to the store's prefix or folder.
type KVPair struct {
	Key   string
	Value []byte
}

// KVStore is the persistence collaborator behind every store in pkg/store.
// Implementations: Badger (embedded), Consul (shared) and an in-memory map.
type KVStore interface {
	GetName() string
	Set(k string, v string) error
	Get(k string) (v string, err error)
	// SetAny encodes v with the store codec.
	SetAny(k string, v any) error
	// GetAny decodes into v and reports whether the key existed.
	GetAny(k string, v any) (found bool, err error)

	// List returns every pair under prefix in ascending key order.
	List(prefix string) ([]*KVPair, error)
	// Delete is idempotent.
	Delete(k string) error
	Close() error
}

// Codec encodes/decodes Go values to/from slices of bytes.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSON is the codec used by all stores.
var JSON = JSONcodec{}

type JSONcodec struct{}

func (c JSONcodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c JSONcodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

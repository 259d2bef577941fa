package kvstore

import (
	"sort"
	"strings"
	"sync"

	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/infra"
)

// MemoryStore is a process-local infra.KVStore used for tests and dry runs.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	codec infra.Codec
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string][]byte),
		codec: infra.JSON,
	}
}

func (m *MemoryStore) GetName() string {
	return string(enum.KVStoreTypeMemory)
}

func (m *MemoryStore) Set(k string, v string) error {
	if k == "" {
		return ErrKeyEmpty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[k] = []byte(v)
	return nil
}

func (m *MemoryStore) Get(k string) (string, error) {
	if k == "" {
		return "", ErrKeyEmpty
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[k]
	if !ok {
		return "", ErrKeyNotFound
	}
	return string(v), nil
}

func (m *MemoryStore) SetAny(k string, v any) error {
	if err := checkKeyAndValue(k, v); err != nil {
		return err
	}
	data, err := m.codec.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[k] = data
	return nil
}

func (m *MemoryStore) GetAny(k string, v any) (bool, error) {
	if err := checkKeyAndValue(k, v); err != nil {
		return false, err
	}
	m.mu.RLock()
	data, ok := m.data[k]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, m.codec.Unmarshal(data, v)
}

func (m *MemoryStore) List(prefix string) ([]*infra.KVPair, error) {
	if prefix == "" {
		return nil, ErrPrefixEmpty
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*infra.KVPair, 0)
	for k, v := range m.data {
		if strings.HasPrefix(k, prefix) {
			result = append(result, &infra.KVPair{Key: k, Value: append([]byte(nil), v...)})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (m *MemoryStore) Delete(k string) error {
	if k == "" {
		return ErrKeyEmpty
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, k)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// Len reports the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

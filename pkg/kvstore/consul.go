package kvstore

// Derived from https://github.com/philippgille/gokv/consul, extended with
// raw string access and prefix listing.

import (
	"fmt"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/infra"
	"github.com/hashicorp/consul/api"
)

// ConsulClient implement infra.KVStore
type ConsulClient struct {
	c      *api.KV
	folder string
	codec  infra.Codec
}

func (c ConsulClient) GetName() string {
	return string(enum.KVStoreTypeConsul)
}

func (c ConsulClient) put(k string, data []byte) error {
	_, err := c.c.Put(&api.KVPair{Key: joinKey(c.folder, k), Value: data}, nil)
	return err
}

func (c ConsulClient) get(k string) ([]byte, error) {
	if k == "" {
		return nil, ErrKeyEmpty
	}
	kvPair, _, err := c.c.Get(joinKey(c.folder, k), nil)
	if err != nil {
		return nil, err
	}
	if kvPair == nil {
		return nil, ErrKeyNotFound
	}
	return kvPair.Value, nil
}

func (c ConsulClient) Set(k string, v string) error {
	if err := checkKeyAndValue(k, v); err != nil {
		return err
	}
	return c.put(k, []byte(v))
}

func (c ConsulClient) Get(k string) (string, error) {
	data, err := c.get(k)
	return string(data), err
}

// SetAny stores v encoded with the client codec.
// The key must not be "" and the value must not be nil.
func (c ConsulClient) SetAny(k string, v any) error {
	if err := checkKeyAndValue(k, v); err != nil {
		return err
	}
	data, err := c.codec.Marshal(v)
	if err != nil {
		return err
	}
	return c.put(k, data)
}

// GetAny decodes the stored value into v. If no value is found it returns (false, nil).
func (c ConsulClient) GetAny(k string, v any) (bool, error) {
	if err := checkKeyAndValue(k, v); err != nil {
		return false, err
	}
	data, err := c.get(k)
	if err == ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, c.codec.Unmarshal(data, v)
}

func (c ConsulClient) List(prefix string) ([]*infra.KVPair, error) {
	if prefix == "" {
		return nil, ErrPrefixEmpty
	}

	kvPairs, _, err := c.c.List(joinKey(c.folder, prefix), nil)
	if err != nil {
		return nil, err
	}

	result := make([]*infra.KVPair, len(kvPairs))
	for i, kvPair := range kvPairs {
		result[i] = &infra.KVPair{
			Key:   stripNamespace(c.folder, kvPair.Key),
			Value: kvPair.Value,
		}
	}
	return result, nil
}

// Delete deletes the stored value for the given key.
// Deleting a non-existing key-value pair does NOT lead to an error.
func (c ConsulClient) Delete(k string) error {
	if k == "" {
		return ErrKeyEmpty
	}
	_, err := c.c.Delete(joinKey(c.folder, k), nil)
	return err
}

// Close has no effect for Consul.
func (c ConsulClient) Close() error {
	return nil
}

type Options struct {
	// Optional ("http" by default).
	Scheme string
	// Optional ("127.0.0.1:8500" by default).
	Address string
	// Directory under which to store the key-value pairs.
	Folder string
	// Optional (infra.JSON by default).
	Codec infra.Codec

	Token    string
	HttpAuth *api.HttpBasicAuth
}

var DefaultConsulOptions = Options{
	Scheme:  "http",
	Address: "127.0.0.1:8500",
	Codec:   infra.JSON,
}

func NewConsulClient(options Options) (infra.KVStore, error) {
	result := ConsulClient{}

	if options.Scheme == "" {
		options.Scheme = DefaultConsulOptions.Scheme
	}
	if options.Address == "" {
		options.Address = DefaultConsulOptions.Address
	}
	if options.Codec == nil {
		options.Codec = DefaultConsulOptions.Codec
	}

	config := api.DefaultConfig()
	config.Scheme = options.Scheme
	config.Address = options.Address
	config.WaitTime = 10 * time.Second
	if options.Token != "" {
		config.Token = options.Token
	}
	if options.HttpAuth != nil && options.HttpAuth.Username != "" {
		config.HttpAuth = options.HttpAuth
	}

	client, err := api.NewClient(config)
	if err != nil {
		return result, err
	}

	if _, err = client.Status().Leader(); err != nil {
		return result, fmt.Errorf("failed to connect to Consul: %w", err)
	}

	result.c = client.KV()
	result.folder = options.Folder
	result.codec = options.Codec
	return result, nil
}

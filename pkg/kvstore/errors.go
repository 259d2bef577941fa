package kvstore

import (
	"errors"
	"strings"
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyEmpty    = errors.New("key is empty")
	ErrPrefixEmpty = errors.New("prefix is empty")
	ErrNilValue    = errors.New("the passed value is nil, which is not allowed")
)

// checkKeyAndValue returns an error if k == "" or if v == nil
func checkKeyAndValue(k string, v any) error {
	if k == "" {
		return ErrKeyEmpty
	}
	if v == nil {
		return ErrNilValue
	}
	return nil
}

func joinKey(namespace, k string) string {
	if namespace == "" {
		return k
	}
	return namespace + "/" + k
}

func stripNamespace(namespace, k string) string {
	if namespace == "" {
		return k
	}
	return strings.TrimPrefix(k, namespace+"/")
}

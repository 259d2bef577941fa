package cursorstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/infra"
)

// ChainCursor is the opaque scan position of one chain.
type ChainCursor struct {
	Chain     string    `json:"chain"`
	Cursor    string    `json:"cursor"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store interface {
	Load(ctx context.Context, chain string) (cursor string, found bool, err error)
	Save(ctx context.Context, chain, cursor string) error
	Delete(ctx context.Context, chain string) error
	List(ctx context.Context) ([]ChainCursor, error)
}

type kvStore struct {
	kv infra.KVStore
}

func New(kv infra.KVStore) Store {
	return &kvStore{kv: kv}
}

func cursorKey(chain string) string {
	return constant.CursorKeyPrefix + strings.ToLower(chain)
}

func (s *kvStore) Load(_ context.Context, chain string) (string, bool, error) {
	var c ChainCursor
	found, err := s.kv.GetAny(cursorKey(chain), &c)
	if err != nil {
		return "", false, fmt.Errorf("failed to get cursor for %s: %w", chain, err)
	}
	if !found || c.Cursor == "" {
		return "", false, nil
	}
	return c.Cursor, true, nil
}

func (s *kvStore) Save(_ context.Context, chain, cursor string) error {
	c := ChainCursor{Chain: chain, Cursor: cursor, UpdatedAt: time.Now().UTC()}
	if err := s.kv.SetAny(cursorKey(chain), c); err != nil {
		return fmt.Errorf("failed to save cursor for %s: %w", chain, err)
	}
	return nil
}

func (s *kvStore) Delete(_ context.Context, chain string) error {
	if err := s.kv.Delete(cursorKey(chain)); err != nil {
		return fmt.Errorf("failed to delete cursor for %s: %w", chain, err)
	}
	return nil
}

func (s *kvStore) List(_ context.Context) ([]ChainCursor, error) {
	pairs, err := s.kv.List(constant.CursorKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list cursors: %w", err)
	}

	cursors := make([]ChainCursor, 0, len(pairs))
	for _, pair := range pairs {
		var c ChainCursor
		if err := infra.JSON.Unmarshal(pair.Value, &c); err != nil {
			continue
		}
		cursors = append(cursors, c)
	}
	return cursors, nil
}

package cursorstore

import (
	"context"
	"testing"

	"github.com/fystack/payment-gateway/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorStore(t *testing.T) {
	ctx := context.Background()
	s := New(kvstore.NewMemoryStore())

	_, found, err := s.Load(ctx, "ethereum")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, "Ethereum", "106"))
	cursor, found, err := s.Load(ctx, "ethereum")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "106", cursor)

	require.NoError(t, s.Save(ctx, "bitcoin", "00000000000000000002a7c4"))
	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.Delete(ctx, "ethereum"))
	_, found, err = s.Load(ctx, "ethereum")
	require.NoError(t, err)
	assert.False(t, found)
}

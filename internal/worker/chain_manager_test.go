package worker

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/fystack/payment-gateway/internal/iterator"
	"github.com/fystack/payment-gateway/internal/scheduler"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/kvstore"
	"github.com/fystack/payment-gateway/pkg/store/cursorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChains struct {
	chains []config.ChainConfig
	err    error
}

func (s *staticChains) LoadChainConfigs(ctx context.Context) ([]config.ChainConfig, error) {
	return s.chains, s.err
}

type fakeRegistry struct {
	tasks     map[string]time.Duration
	added     []string
	removed   []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{tasks: make(map[string]time.Duration)}
}

func (r *fakeRegistry) Add(key string, task scheduler.Task, interval time.Duration) bool {
	if _, ok := r.tasks[key]; ok {
		return false
	}
	r.tasks[key] = interval
	r.added = append(r.added, key)
	return true
}

func (r *fakeRegistry) Remove(key string) bool {
	if _, ok := r.tasks[key]; !ok {
		return false
	}
	delete(r.tasks, key)
	r.removed = append(r.removed, key)
	return true
}

func (r *fakeRegistry) keys() []string {
	out := make([]string, 0, len(r.tasks))
	for k := range r.tasks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type fakeBuilder struct {
	fail    map[string]error
	builds  map[string]int
	cursors map[string]string
	forgot  []string
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{fail: map[string]error{}, builds: map[string]int{}, cursors: map[string]string{}}
}

func (b *fakeBuilder) Build(ctx context.Context, chain config.ChainConfig, cursor string) (iterator.Iterator, error) {
	b.builds[chain.Name]++
	b.cursors[chain.Name] = cursor
	if err := b.fail[chain.Name]; err != nil {
		return nil, err
	}
	return nil, nil
}

func (b *fakeBuilder) Forget(chain string) { b.forgot = append(b.forgot, chain) }

func chainConfig(name string, t enum.ChainType, enabled bool, interval time.Duration) config.ChainConfig {
	return config.ChainConfig{
		Name:           name,
		Type:           t,
		PaymentEnabled: enabled,
		PollInterval:   interval,
		Nodes:          []config.NodeConfig{{URL: "http://localhost:1234"}},
	}
}

func noopTask(config.ChainConfig) scheduler.Task {
	return scheduler.TaskFunc(func(context.Context) {})
}

func TestChainManager_AddsAndRemovesChains(t *testing.T) {
	ctx := context.Background()
	source := &staticChains{chains: []config.ChainConfig{
		chainConfig("ethereum", enum.ChainTypeEVM, true, 12*time.Second),
		chainConfig("bitcoin", enum.ChainTypeNative, true, time.Minute),
		chainConfig("polygon", enum.ChainTypeEVM, false, time.Second),
	}}
	registry := newFakeRegistry()
	builder := newFakeBuilder()
	cursors := cursorstore.New(kvstore.NewMemoryStore())
	require.NoError(t, cursors.Save(ctx, "bitcoin", "000000abc"))

	m := NewChainManagerTask(source, registry, builder, cursors, noopTask)
	m.Run(ctx)

	assert.Equal(t, []string{"ingest:bitcoin", "ingest:ethereum"}, registry.keys())
	assert.Equal(t, 12*time.Second, registry.tasks["ingest:ethereum"])
	assert.Equal(t, time.Minute, registry.tasks["ingest:bitcoin"])
	assert.Equal(t, "000000abc", builder.cursors["bitcoin"])
	assert.ElementsMatch(t, []string{"ethereum", "bitcoin"}, m.Applied())

	// same set with different casing: nothing changes
	source.chains = []config.ChainConfig{
		chainConfig("Ethereum", enum.ChainTypeEVM, true, 12*time.Second),
		chainConfig("BITCOIN", enum.ChainTypeNative, true, time.Minute),
	}
	m.Run(ctx)
	assert.Len(t, registry.added, 2)
	assert.Empty(t, registry.removed)

	// bitcoin dropped from configuration
	source.chains = source.chains[:1]
	m.Run(ctx)
	assert.Equal(t, []string{"ingest:ethereum"}, registry.keys())
	assert.Equal(t, []string{"ingest:bitcoin"}, registry.removed)
	assert.Equal(t, []string{"bitcoin"}, builder.forgot)
}

func TestChainManager_RenameIsRemoveAndAdd(t *testing.T) {
	ctx := context.Background()
	source := &staticChains{chains: []config.ChainConfig{chainConfig("eth", enum.ChainTypeEVM, true, time.Second)}}
	registry := newFakeRegistry()
	m := NewChainManagerTask(source, registry, newFakeBuilder(), cursorstore.New(kvstore.NewMemoryStore()), noopTask)

	m.Run(ctx)
	source.chains = []config.ChainConfig{chainConfig("ethereum", enum.ChainTypeEVM, true, time.Second)}
	m.Run(ctx)

	assert.Equal(t, []string{"ingest:ethereum"}, registry.keys())
	assert.Equal(t, []string{"ingest:eth"}, registry.removed)
}

func TestChainManager_RetriesFailedChains(t *testing.T) {
	ctx := context.Background()
	source := &staticChains{chains: []config.ChainConfig{
		chainConfig("ethereum", enum.ChainTypeEVM, true, time.Second),
		chainConfig("tron", enum.ChainTypeEVM, true, time.Second),
	}}
	registry := newFakeRegistry()
	builder := newFakeBuilder()
	builder.fail["tron"] = iterator.ErrUnsupportedBlockchain
	m := NewChainManagerTask(source, registry, builder, cursorstore.New(kvstore.NewMemoryStore()), noopTask)

	m.Run(ctx)
	assert.Equal(t, []string{"ingest:ethereum"}, registry.keys())

	m.Run(ctx)
	assert.Equal(t, 2, builder.builds["tron"])
	assert.Equal(t, 1, builder.builds["ethereum"])

	delete(builder.fail, "tron")
	m.Run(ctx)
	assert.Equal(t, []string{"ingest:ethereum", "ingest:tron"}, registry.keys())
}

func TestChainManager_InvalidConfigIsSkipped(t *testing.T) {
	ctx := context.Background()
	bad := chainConfig("broken", enum.ChainTypeEVM, true, time.Second)
	bad.Nodes = nil
	source := &staticChains{chains: []config.ChainConfig{bad}}
	registry := newFakeRegistry()
	builder := newFakeBuilder()
	m := NewChainManagerTask(source, registry, builder, cursorstore.New(kvstore.NewMemoryStore()), noopTask)

	m.Run(ctx)
	assert.Empty(t, registry.keys())
	assert.Zero(t, builder.builds["broken"])
}

func TestChainManager_SourceErrorKeepsState(t *testing.T) {
	ctx := context.Background()
	source := &staticChains{chains: []config.ChainConfig{chainConfig("ethereum", enum.ChainTypeEVM, true, time.Second)}}
	registry := newFakeRegistry()
	m := NewChainManagerTask(source, registry, newFakeBuilder(), cursorstore.New(kvstore.NewMemoryStore()), noopTask)
	m.Run(ctx)

	source.err = errors.New("consul unavailable")
	m.Run(ctx)
	assert.Equal(t, []string{"ingest:ethereum"}, registry.keys())
	assert.Empty(t, registry.removed)
}

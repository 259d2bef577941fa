package worker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fystack/payment-gateway/internal/metrics"
	"github.com/fystack/payment-gateway/internal/scheduler"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/samber/lo"
)

type ChainSource interface {
	LoadChainConfigs(ctx context.Context) ([]config.ChainConfig, error)
}

type TaskRegistry interface {
	Add(key string, task scheduler.Task, interval time.Duration) bool
	Remove(key string) bool
}

// TaskFactory builds the ingestion task of a chain.
type TaskFactory func(chain config.ChainConfig) scheduler.Task

// ChainForgetter drops per-chain state held outside the scheduler.
type ChainForgetter interface {
	Forget(chain string)
}

func IngestionTaskKey(chain string) string {
	return constant.IngestionTaskPrefix + strings.ToLower(chain)
}

// ChainManagerTask keeps one ingestion task registered per payment-enabled
// chain, following configuration changes between runs.
type ChainManagerTask struct {
	source   ChainSource
	registry TaskRegistry
	builder  IteratorBuilder
	cursors  CursorStore
	newTask  TaskFactory
	forget   ChainForgetter

	applied map[string]config.ChainConfig
	log     *slog.Logger
}

func NewChainManagerTask(
	source ChainSource,
	registry TaskRegistry,
	builder IteratorBuilder,
	cursors CursorStore,
	newTask TaskFactory,
) *ChainManagerTask {
	m := &ChainManagerTask{
		source:   source,
		registry: registry,
		builder:  builder,
		cursors:  cursors,
		newTask:  newTask,
		applied:  make(map[string]config.ChainConfig),
		log:      logger.With("component", "chain_manager"),
	}
	if f, ok := builder.(ChainForgetter); ok {
		m.forget = f
	}
	return m
}

// Applied returns the names of chains with a registered task.
func (m *ChainManagerTask) Applied() []string {
	return lo.Keys(m.applied)
}

func (m *ChainManagerTask) Run(ctx context.Context) {
	chains, err := m.source.LoadChainConfigs(ctx)
	if err != nil {
		m.log.Error("Failed to load chain configuration", "err", err)
		return
	}

	observed := make(map[string]config.ChainConfig, len(chains))
	for _, c := range chains {
		if c.PaymentEnabled {
			observed[strings.ToLower(c.Name)] = c
		}
	}

	removed := lo.OmitByKeys(m.applied, lo.Keys(observed))
	for name, chain := range removed {
		m.registry.Remove(IngestionTaskKey(name))
		if m.forget != nil {
			m.forget.Forget(name)
		}
		m.log.Info("Chain removed, ingestion stopped", "chain", chain.Name)
	}

	next := lo.PickByKeys(m.applied, lo.Keys(observed))
	for name, chain := range lo.OmitByKeys(observed, lo.Keys(m.applied)) {
		if m.start(ctx, chain) {
			next[name] = chain
		}
	}

	m.applied = next
	metrics.ManagedChains.Set(float64(len(m.applied)))
}

// start registers the chain's ingestion task. A chain that cannot be built
// is left out so the next run tries again.
func (m *ChainManagerTask) start(ctx context.Context, chain config.ChainConfig) bool {
	log := m.log.With("chain", chain.Name)

	if err := config.ValidateChain(chain); err != nil {
		metrics.ChainBuildFailuresTotal.WithLabelValues(chain.Name).Inc()
		log.Error("Invalid chain configuration", "err", err)
		return false
	}

	cursor, found, err := m.cursors.Load(ctx, chain.Name)
	if err != nil {
		metrics.ChainBuildFailuresTotal.WithLabelValues(chain.Name).Inc()
		log.Error("Failed to load cursor", "err", err)
		return false
	}
	if _, err := m.builder.Build(ctx, chain, cursor); err != nil {
		metrics.ChainBuildFailuresTotal.WithLabelValues(chain.Name).Inc()
		log.Error("Chain cannot be scanned", "err", err)
		return false
	}

	interval := chain.PollInterval
	if interval <= 0 {
		interval = constant.DefaultPollInterval
	}
	if !m.registry.Add(IngestionTaskKey(chain.Name), m.newTask(chain), interval) {
		log.Warn("Ingestion task already registered")
	}

	if found {
		log.Info("Chain added, resuming", "cursor", cursor, "interval", interval)
	} else {
		log.Info("Chain added, no saved cursor", "from_latest", chain.FromLatest, "start_block", chain.StartBlock, "interval", interval)
	}
	return true
}

package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fystack/payment-gateway/internal/iterator"
	"github.com/fystack/payment-gateway/internal/metrics"
	"github.com/fystack/payment-gateway/internal/notification"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/events"
	"golang.org/x/sync/errgroup"
)

const maxRecordFanout = 32

type IteratorBuilder interface {
	Build(ctx context.Context, chain config.ChainConfig, savedCursor string) (iterator.Iterator, error)
}

type CursorStore interface {
	Load(ctx context.Context, chain string) (string, bool, error)
	Save(ctx context.Context, chain, cursor string) error
}

// Ledger is the append side of the payment store.
type Ledger interface {
	Append(ctx context.Context, record types.PaymentRecord) error
}

// Outcome summarises one ingestion cycle.
type Outcome struct {
	Chain        string
	Payments     int
	CursorBefore string
	CursorAfter  string
	CursorSaved  bool
	Stage        string
	Err          error
}

// IngestionTask scans one chain per run and records what it finds.
type IngestionTask struct {
	chain     config.ChainConfig
	builder   IteratorBuilder
	cursors   CursorStore
	ledger    Ledger
	queue     notification.Enqueuer
	emitter   events.Emitter
	now       func() time.Time
	onOutcome func(Outcome)
	log       *slog.Logger
}

func NewIngestionTask(
	chain config.ChainConfig,
	builder IteratorBuilder,
	cursors CursorStore,
	ledger Ledger,
	queue notification.Enqueuer,
	emitter events.Emitter,
) *IngestionTask {
	return &IngestionTask{
		chain:   chain,
		builder: builder,
		cursors: cursors,
		ledger:  ledger,
		queue:   queue,
		emitter: emitter,
		now:     time.Now,
		log:     logger.With("component", "ingestion", "chain", chain.Name),
	}
}

// OnOutcome registers a callback invoked after every cycle.
func (t *IngestionTask) OnOutcome(fn func(Outcome)) *IngestionTask {
	t.onOutcome = fn
	return t
}

// Run never returns an error; a failed cycle leaves the cursor where it was
// and the next tick retries the same range.
func (t *IngestionTask) Run(ctx context.Context) {
	start := time.Now()
	out := t.cycle(ctx)
	metrics.IngestionLatency.WithLabelValues(t.chain.Name).Observe(time.Since(start).Seconds())

	switch {
	case out.Err != nil:
		metrics.IngestionCyclesTotal.WithLabelValues(t.chain.Name, "error").Inc()
		metrics.IngestionErrorsTotal.WithLabelValues(t.chain.Name, out.Stage).Inc()
		t.log.Error("Ingestion cycle failed", "stage", out.Stage, "cursor", out.CursorBefore, "err", out.Err)
		if t.emitter != nil {
			if err := t.emitter.EmitError(ctx, t.chain.Name, out.Err); err != nil {
				t.log.Warn("Failed to emit error event", "err", err)
			}
		}
	case out.Payments == 0:
		metrics.IngestionCyclesTotal.WithLabelValues(t.chain.Name, "empty").Inc()
		t.log.Debug("Ingestion cycle found nothing", "cursor", out.CursorAfter)
	default:
		metrics.IngestionCyclesTotal.WithLabelValues(t.chain.Name, "ok").Inc()
		metrics.IngestionPaymentsTotal.WithLabelValues(t.chain.Name).Add(float64(out.Payments))
		t.log.Info("Ingestion cycle recorded payments",
			"payments", out.Payments,
			"from", out.CursorBefore,
			"to", out.CursorAfter,
			"elapsed", time.Since(start),
		)
	}

	if t.onOutcome != nil {
		t.onOutcome(out)
	}
}

func (t *IngestionTask) cycle(ctx context.Context) (out Outcome) {
	out.Chain = t.chain.Name
	defer func() {
		if r := recover(); r != nil {
			out.Stage = "panic"
			out.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	saved, _, err := t.cursors.Load(ctx, t.chain.Name)
	if err != nil {
		out.Stage, out.Err = "cursor_load", err
		return out
	}
	out.CursorBefore = saved

	it, err := t.builder.Build(ctx, t.chain, saved)
	if err != nil {
		out.Stage, out.Err = "build", err
		return out
	}

	records, err := it.NextBatch(ctx)
	if err != nil {
		out.Stage, out.Err = "scan", err
		return out
	}
	out.Payments = len(records)

	var g errgroup.Group
	g.SetLimit(maxRecordFanout)
	for _, rec := range records {
		g.Go(func() error {
			return t.persist(ctx, rec)
		})
	}
	if err := g.Wait(); err != nil {
		out.Stage, out.Err = "persist", err
		return out
	}

	out.CursorAfter = it.LastProcessed()
	if out.CursorAfter == "" || out.CursorAfter == saved {
		return out
	}
	if err := t.cursors.Save(ctx, t.chain.Name, out.CursorAfter); err != nil {
		out.Stage, out.Err = "cursor_save", err
		return out
	}
	out.CursorSaved = true
	return out
}

func (t *IngestionTask) persist(ctx context.Context, rec types.PaymentRecord) error {
	if err := t.ledger.Append(ctx, rec); err != nil {
		return err
	}

	notifications, err := notification.PaymentNotifications(rec, t.now())
	if err != nil {
		return err
	}
	for _, n := range notifications {
		if err := t.queue.Enqueue(ctx, n); err != nil {
			return err
		}
	}

	if t.emitter != nil {
		if err := t.emitter.EmitPayment(ctx, rec); err != nil {
			t.log.Warn("Failed to emit payment event", "payment", rec.Identity(), "err", err)
		}
	}
	return nil
}

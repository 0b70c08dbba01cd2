package warehouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/warehouse-observability/internal/application"
	"github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/warehouse-observability/internal/domain/outbox"
	"github.com/Zhima-Mochi/warehouse-observability/internal/domain/stock"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability/logctx"
	"github.com/google/uuid"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	warehouseService = "warehouse-interface"
	useCaseCycle     = "warehouse.cycle"
	publishTimeout   = 300 * time.Millisecond

	DefaultInterval    = 10 * time.Second
	DefaultCallTimeout = 5 * time.Second
)

// FulfillmentSource picks which line items a cycle decrements stock for.
type FulfillmentSource string

const (
	// SourcePending uses the quantities of the order fetched from the store.
	SourcePending FulfillmentSource = "pending"
	// SourceDemand uses the quantities generated at the start of the cycle.
	SourceDemand FulfillmentSource = "demand"
)

type Config struct {
	Interval    time.Duration
	CallTimeout time.Duration
	Source      FulfillmentSource
}

type Orchestrator struct {
	orders    OrderStore
	stock     StockStore
	demand    DemandSource
	publisher domoutbox.Publisher
	cfg       Config
	newID     func() string

	meter          *application.Meter
	replenishments observability.Counter // warehouse_replenishments_total{product}
}

type Option func(*Orchestrator)

// WithPublisher emits a CycleCompletedEvent after every cycle.
func WithPublisher(p domoutbox.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithIDGenerator replaces uuid-based cycle ids.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.newID = f
		}
	}
}

func NewOrchestrator(
	orders OrderStore,
	stockStore StockStore,
	demand DemandSource,
	cfg Config,
	tel observability.Observability,
	opts ...Option,
) *Orchestrator {
	if tel == nil {
		tel = observability.Nop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Source == "" {
		cfg.Source = SourcePending
	}
	o := &Orchestrator{
		orders:         orders,
		stock:          stockStore,
		demand:         demand,
		cfg:            cfg,
		newID:          uuid.NewString,
		meter:          application.NewMeter(tel, warehouseService, useCaseCycle),
		replenishments: tel.Metrics().Counter(observability.MReplenishments),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes cycles back to back, waiting Interval between them, until ctx
// is canceled. Cycles never overlap.
func (o *Orchestrator) Run(ctx context.Context) {
	logger := logctx.FromOr(ctx, o.meter.Logger())
	logger.Info("warehouse_loop_started",
		observability.F("interval", o.cfg.Interval.String()),
		observability.F("fulfillment_source", string(o.cfg.Source)),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("warehouse_loop_stopped")
			return
		case <-timer.C:
		}

		o.RunCycle(ctx)
		timer.Reset(o.cfg.Interval)
	}
}

// RunCycle performs one generate, fetch, fulfill, retire pass.
func (o *Orchestrator) RunCycle(ctx context.Context) (res CycleResult) {
	cycleID := o.newID()
	res.CycleID = cycleID

	ctx = logctx.WithCorrelationID(ctx, cycleID)
	ctx = logctx.With(ctx, logctx.FromOr(ctx, o.meter.Logger()).With(observability.F("cycle_id", cycleID)))

	ctx, run := o.meter.Start(ctx, "WarehouseCycle", attribute.String("warehouse.cycle_id", cycleID))
	logger := run.Logger().With(observability.TraceFields(ctx)...)
	ctx = logctx.With(ctx, logger)

	defer func() {
		run.Set(string(res.Outcome), res.Status)
		run.Annotate(
			observability.F("lines", len(res.Lines)),
			observability.F("lines_failed", len(res.FailedLines())),
		)
		if res.OrderID != 0 {
			run.Annotate(observability.F("order_id", res.OrderID))
			run.Span().SetAttributes(attribute.Int64("order.id", res.OrderID))
		}
		o.publish(ctx, logger, res)

		endErr := res.Err
		if res.Outcome == OutcomeSkipped {
			// nothing to do is not an error for the span
			if res.Err != nil {
				run.Annotate(observability.F("reason", res.Err.Error()))
			}
			endErr = nil
		}
		run.End(endErr)
	}()

	if err := ctx.Err(); err != nil {
		res.finish(OutcomeFailed, StatusCanceled, err)
		return res
	}

	demand := o.demand.Next()
	if _, err := callWith(ctx, o.cfg.CallTimeout, func(ctx context.Context) (int64, error) {
		return o.orders.Create(ctx, demand, cycleID)
	}); err != nil {
		logger.Error("demand_submit_failed", observability.Err(err))
		res.finish(OutcomeFailed, StatusDemandSubmitFailed, err)
		return res
	}

	pending, err := callWith(ctx, o.cfg.CallTimeout, o.orders.ListUnprocessed)
	if err != nil {
		logger.Error("pending_fetch_failed", observability.Err(err))
		res.finish(OutcomeFailed, StatusPendingFetchFailed, err)
		return res
	}
	if len(pending) == 0 || pending[0].ID <= 0 {
		logger.Warn("order_id_missing", observability.F("pending_count", len(pending)))
		res.finish(OutcomeSkipped, StatusMissingOrderID, ErrMissingOrderID)
		return res
	}

	target := pending[0]
	res.OrderID = target.ID
	run.Span().AddEvent("warehouse.order_selected",
		trace.WithAttributes(attribute.Int64("order.id", target.ID)),
	)

	lines := target.Lines
	if o.cfg.Source == SourceDemand {
		lines = demand
	}
	res.Lines = o.fulfill(ctx, logger, IdempotencyKey(target), lines)

	if failed := res.FailedLines(); len(failed) > 0 {
		errs := make([]error, 0, len(failed))
		for _, l := range failed {
			errs = append(errs, fmt.Errorf("%s: %w", l.Product, l.Err))
		}
		err := fmt.Errorf("warehouse: %d of %d lines not fulfilled: %w", len(failed), len(res.Lines), errors.Join(errs...))
		logger.Warn("order_retained", observability.F("order_id", target.ID))
		res.finish(OutcomeFailed, StatusFulfillmentIncomplete, err)
		return res
	}

	if _, err := callWith(ctx, o.cfg.CallTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.orders.Delete(ctx, target.ID)
	}); err != nil {
		logger.Error("order_retire_failed",
			observability.F("order_id", target.ID),
			observability.Err(err),
		)
		res.finish(OutcomeFailed, StatusOrderRetireFailed, err)
		return res
	}

	res.finish(OutcomeSucceeded, StatusOK, nil)
	return res
}

// IdempotencyKey is the stock decrease key for an order. It is stable across
// cycles so a retried order is not decremented twice. Order ids restart when
// an in-memory order store restarts, so the order's own creation key wins and
// the id is only used for stores that do not report one.
func IdempotencyKey(target PendingOrder) string {
	if target.Key != "" {
		return "order-" + target.Key
	}
	return fmt.Sprintf("order-%d", target.ID)
}

func (o *Orchestrator) fulfill(ctx context.Context, logger observability.Logger, key string, lines order.Lines) []LineResult {
	results := make([]LineResult, 0, len(order.Products))

	for _, product := range order.Products {
		qty := lines[product]
		if qty <= 0 {
			continue
		}
		line := LineResult{Product: product, Quantity: qty}
		lineLog := logger.With(observability.F("product", product), observability.F("quantity", qty))

		applied, err := callWith(ctx, o.cfg.CallTimeout, func(ctx context.Context) (bool, error) {
			return o.stock.Decrease(ctx, product, qty, key)
		})
		if err != nil {
			lineLog.Error("cycle_line_failed", observability.Err(err))
			line.Err = err
			results = append(results, line)
			continue
		}
		line.Decreased = true
		if !applied {
			// replenishment already ran when the decrease was first applied
			line.Replayed = true
			lineLog.Info("stock_decrease_replayed", observability.F("idempotency_key", key))
			results = append(results, line)
			continue
		}

		level, err := callWith(ctx, o.cfg.CallTimeout, func(ctx context.Context) (int, error) {
			return o.stock.Check(ctx, product)
		})
		if err != nil {
			lineLog.Warn("stock_check_failed", observability.Err(err))
			results = append(results, line)
			continue
		}

		if level < stock.ReplenishThreshold {
			if _, err := callWith(ctx, o.cfg.CallTimeout, func(ctx context.Context) (struct{}, error) {
				return struct{}{}, o.stock.Increase(ctx, product, stock.ReplenishAmount)
			}); err != nil {
				lineLog.Warn("stock_replenish_failed",
					observability.F("level", level),
					observability.Err(err),
				)
			} else {
				line.Replenished = true
				o.replenishments.Add(1, observability.L("product", product))
				lineLog.Info("stock_replenished",
					observability.F("level", level),
					observability.F("amount", stock.ReplenishAmount),
				)
			}
		}
		results = append(results, line)
	}
	return results
}

func (o *Orchestrator) publish(ctx context.Context, logger observability.Logger, res CycleResult) {
	if o.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := o.publisher.Publish(pubCtx, res.event()); err != nil {
		logger.Warn("cycle_event_publish_failed", observability.Err(err))
	}
}

// callWith runs f under a per-call timeout derived from ctx.
func callWith[T any](ctx context.Context, timeout time.Duration, f func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return f(callCtx)
}

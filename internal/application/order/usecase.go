package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/warehouse-observability/internal/application"
	domain "github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/warehouse-observability/internal/domain/outbox"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-processor"
	useCaseOrderCreate = "order.create"
	useCaseOrderList   = "order.list_unprocessed"
	useCaseOrderDelete = "order.delete"
	publishPeer        = "outbox"
	publishTimeout     = 300 * time.Millisecond
)

var (
	ErrNotFound   = domain.ErrNotFound
	ErrRepository = errors.New("order: repository failure")
)

// CreateOrderUseCase stores a new order, replaying the existing one when the
// idempotency key was seen before.
type CreateOrderUseCase struct {
	repo      domain.Repository
	publisher domoutbox.Publisher
	meter     *application.Meter

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewCreateOrderUseCase(repo domain.Repository, publisher domoutbox.Publisher, tel observability.Observability) *CreateOrderUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &CreateOrderUseCase{
		repo:         repo,
		publisher:    publisher,
		meter:        application.NewMeter(tel, orderService, useCaseOrderCreate),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

type CreateOrderInput struct {
	IdempotencyKey string
	Lines          domain.Lines
}

type CreateOrderResult struct {
	OrderID  int64
	Replayed bool
}

func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	ctx, run := uc.meter.Start(ctx, "CreateOrder",
		attribute.Int("order.total_quantity", cmd.Lines.Total()),
		attribute.Bool("order.idempotent", cmd.IdempotencyKey != ""),
	)
	defer func() { run.End(err) }()
	span := run.Span()

	entity, derr := domain.New(cmd.Lines, cmd.IdempotencyKey)
	if derr != nil {
		run.Fail("VALIDATION_FAILED")
		return nil, fmt.Errorf("order: construct: %w", derr)
	}
	if err := ctx.Err(); err != nil {
		run.Fail("CONTEXT_CANCELED")
		return nil, err
	}

	if cmd.IdempotencyKey != "" {
		existing, repoErr := uc.repo.FindByIdempotency(ctx, cmd.IdempotencyKey)
		switch {
		case repoErr == nil:
			return uc.replay(run, span, existing), nil
		case errors.Is(repoErr, domain.ErrNotFound):
		default:
			run.Fail("IDEMPOTENCY_LOOKUP_FAILED")
			return nil, wrapRepositoryError(repoErr)
		}
	}

	if err := uc.repo.Insert(ctx, entity); err != nil {
		if errors.Is(err, domain.ErrConflict) && cmd.IdempotencyKey != "" {
			if existing, lookupErr := uc.repo.FindByIdempotency(ctx, cmd.IdempotencyKey); lookupErr == nil {
				return uc.replay(run, span, existing), nil
			}
		}
		run.Fail("REPO_INSERT_FAILED")
		return nil, wrapRepositoryError(err)
	}

	if publishErr := uc.publish(ctx, domain.NewOrderCreatedEvent(entity)); publishErr != nil {
		run.Annotate(observability.F("event_publish_error", publishErr.Error()))
	}

	run.Annotate(observability.F("order_id", entity.ID))
	span.SetAttributes(attribute.Int64("order.id", entity.ID))
	span.AddEvent("order.created")

	return &CreateOrderResult{OrderID: entity.ID}, nil
}

func (uc *CreateOrderUseCase) replay(run *application.Run, span trace.Span, existing *domain.Order) *CreateOrderResult {
	run.Set(application.OutcomeSuccess, "IDEMPOTENT_REPLAY")
	run.Annotate(observability.F("order_id", existing.ID))
	span.AddEvent("order.idempotent_replay",
		trace.WithAttributes(attribute.Int64("order.id", existing.ID)),
	)
	return &CreateOrderResult{OrderID: existing.ID, Replayed: true}
}

func (uc *CreateOrderUseCase) publish(ctx context.Context, e domoutbox.Event) error {
	if uc.publisher == nil {
		return nil
	}
	return publishEvent(ctx, uc.publisher, e, uc.extCounter, uc.extHistogram)
}

// publishEvent hands e to the outbox under publishTimeout and records the call
// like any other external request.
func publishEvent(
	ctx context.Context,
	publisher domoutbox.Publisher,
	e domoutbox.Event,
	extCounter observability.Counter,
	extHistogram observability.Histogram,
) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	err := publisher.Publish(pubCtx, e)
	if err != nil {
		outcome = "error"
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}

	extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", e.EventName()),
	)
	return err
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}

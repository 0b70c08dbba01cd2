package order

import (
	"context"
	"errors"

	"github.com/Zhima-Mochi/warehouse-observability/internal/application"
	domain "github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/warehouse-observability/internal/domain/outbox"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

type DeleteOrderUseCase struct {
	repo      domain.Repository
	publisher domoutbox.Publisher
	meter     *application.Meter

	extCounter   observability.Counter
	extHistogram observability.Histogram
}

func NewDeleteOrderUseCase(repo domain.Repository, publisher domoutbox.Publisher, tel observability.Observability) *DeleteOrderUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &DeleteOrderUseCase{
		repo:         repo,
		publisher:    publisher,
		meter:        application.NewMeter(tel, orderService, useCaseOrderDelete),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

type DeleteOrderInput struct {
	OrderID int64
}

func (uc *DeleteOrderUseCase) Execute(ctx context.Context, cmd DeleteOrderInput) (_ struct{}, err error) {
	ctx, run := uc.meter.Start(ctx, "DeleteOrder", attribute.Int64("order.id", cmd.OrderID))
	defer func() { run.End(err) }()
	run.Annotate(observability.F("order_id", cmd.OrderID))

	if err := uc.repo.Delete(ctx, cmd.OrderID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			run.Fail("ORDER_NOT_FOUND")
		} else {
			run.Fail("REPO_DELETE_FAILED")
		}
		return struct{}{}, wrapRepositoryError(err)
	}

	if uc.publisher != nil {
		if publishErr := publishEvent(ctx, uc.publisher, domain.NewOrderDeletedEvent(cmd.OrderID), uc.extCounter, uc.extHistogram); publishErr != nil {
			run.Annotate(observability.F("event_publish_error", publishErr.Error()))
		}
	}
	return struct{}{}, nil
}

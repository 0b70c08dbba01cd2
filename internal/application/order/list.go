package order

import (
	"context"

	"github.com/Zhima-Mochi/warehouse-observability/internal/application"
	domain "github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

type ListUnprocessedUseCase struct {
	repo  domain.Repository
	meter *application.Meter
}

func NewListUnprocessedUseCase(repo domain.Repository, tel observability.Observability) *ListUnprocessedUseCase {
	return &ListUnprocessedUseCase{
		repo:  repo,
		meter: application.NewMeter(tel, orderService, useCaseOrderList),
	}
}

type ListUnprocessedInput struct{}

func (uc *ListUnprocessedUseCase) Execute(ctx context.Context, _ ListUnprocessedInput) (_ []*domain.Order, err error) {
	ctx, run := uc.meter.Start(ctx, "ListUnprocessed")
	defer func() { run.End(err) }()

	orders, err := uc.repo.ListUnprocessed(ctx)
	if err != nil {
		run.Fail("REPO_LIST_FAILED")
		return nil, wrapRepositoryError(err)
	}

	run.Span().SetAttributes(attribute.Int("order.pending_count", len(orders)))
	run.Annotate(observability.F("pending_count", len(orders)))
	return orders, nil
}

package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/warehouse-observability/internal/application"
	domain "github.com/Zhima-Mochi/warehouse-observability/internal/domain/stock"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	stockService        = "stock-controller"
	useCaseStockCheck   = "stock.check"
	useCaseStockAdjust  = "stock.adjust"
	statusNotFound      = "PRODUCT_NOT_FOUND"
	statusInvalidAmount = "QUANTITY_INVALID"
)

var (
	ErrNotFound        = domain.ErrNotFound
	ErrInvalidQuantity = domain.ErrInvalidQuantity
	ErrProductRequired = errors.New("stock: product is required")
	ErrRepository      = errors.New("stock: repository failure")
)

type Direction string

const (
	Increase Direction = "increase"
	Decrease Direction = "decrease"
)

type CheckStockUseCase struct {
	repo  domain.Repository
	meter *application.Meter
}

func NewCheckStockUseCase(repo domain.Repository, tel observability.Observability) *CheckStockUseCase {
	return &CheckStockUseCase{
		repo:  repo,
		meter: application.NewMeter(tel, stockService, useCaseStockCheck),
	}
}

type CheckStockInput struct {
	Product string
}

func (uc *CheckStockUseCase) Execute(ctx context.Context, cmd CheckStockInput) (_ *domain.Level, err error) {
	ctx, run := uc.meter.Start(ctx, "CheckStock", attribute.String("stock.product", cmd.Product))
	defer func() { run.End(err) }()
	run.Annotate(observability.F("product", cmd.Product))

	if cmd.Product == "" {
		run.Fail("PRODUCT_REQUIRED")
		return nil, ErrProductRequired
	}

	level, err := uc.repo.Get(ctx, cmd.Product)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			run.Fail(statusNotFound)
			return nil, ErrNotFound
		}
		run.Fail("REPO_GET_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	run.Span().SetAttributes(attribute.Int("stock.quantity", level.Quantity))
	run.Annotate(observability.F("quantity", level.Quantity))
	return level, nil
}

// AdjustStockUseCase applies an increase or decrease. Decreases honour the
// idempotency key; increases ignore it.
type AdjustStockUseCase struct {
	repo  domain.Repository
	meter *application.Meter
}

func NewAdjustStockUseCase(repo domain.Repository, tel observability.Observability) *AdjustStockUseCase {
	return &AdjustStockUseCase{
		repo:  repo,
		meter: application.NewMeter(tel, stockService, useCaseStockAdjust),
	}
}

type AdjustStockInput struct {
	Direction      Direction
	Product        string
	Quantity       int
	IdempotencyKey string
}

type AdjustStockResult struct {
	// Applied is false when a decrease with the same key was already recorded.
	Applied bool
}

func (uc *AdjustStockUseCase) Execute(ctx context.Context, cmd AdjustStockInput) (_ *AdjustStockResult, err error) {
	ctx, run := uc.meter.Start(ctx, "AdjustStock",
		attribute.String("stock.direction", string(cmd.Direction)),
		attribute.String("stock.product", cmd.Product),
		attribute.Int("stock.quantity", cmd.Quantity),
	)
	defer func() { run.End(err) }()
	run.Annotate(
		observability.F("direction", string(cmd.Direction)),
		observability.F("product", cmd.Product),
		observability.F("quantity", cmd.Quantity),
	)

	if cmd.Product == "" {
		run.Fail("PRODUCT_REQUIRED")
		return nil, ErrProductRequired
	}
	if verr := domain.ValidateQuantity(cmd.Quantity); verr != nil {
		run.Fail(statusInvalidAmount)
		return nil, verr
	}

	applied := true
	switch cmd.Direction {
	case Increase:
		err = uc.repo.Increase(ctx, cmd.Product, cmd.Quantity)
	case Decrease:
		applied, err = uc.repo.Decrease(ctx, cmd.Product, cmd.Quantity, cmd.IdempotencyKey)
	default:
		run.Fail("DIRECTION_INVALID")
		return nil, fmt.Errorf("stock: unknown direction %q", cmd.Direction)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			run.Fail(statusNotFound)
			return nil, ErrNotFound
		}
		run.Fail("REPO_ADJUST_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	if !applied {
		run.Set(application.OutcomeSuccess, "IDEMPOTENT_REPLAY")
		run.Span().AddEvent("stock.idempotent_replay")
	}
	return &AdjustStockResult{Applied: applied}, nil
}

package order

import (
	"context"
	"sync"
	"testing"

	domain "github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/warehouse-observability/internal/domain/outbox"
	"github.com/Zhima-Mochi/warehouse-observability/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

func TestCreateListDelete(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	pub := &recordingPublisher{}
	tel := observability.Nop()

	create := NewCreateOrderUseCase(repo, pub, tel)
	list := NewListUnprocessedUseCase(repo, tel)
	del := NewDeleteOrderUseCase(repo, pub, tel)

	res, err := create.Execute(ctx, CreateOrderInput{
		Lines: domain.Lines{"computers": 3, "chairs": 7, "desks": 2, "cupboards": 9},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.OrderID)
	assert.False(t, res.Replayed)

	pending, err := list.Execute(ctx, ListUnprocessedInput{})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 9, pending[0].Lines["cupboards"])

	_, err = del.Execute(ctx, DeleteOrderInput{OrderID: res.OrderID})
	require.NoError(t, err)

	_, err = del.Execute(ctx, DeleteOrderInput{OrderID: res.OrderID})
	assert.ErrorIs(t, err, ErrNotFound)

	pending, err = list.Execute(ctx, ListUnprocessedInput{})
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, []string{"order.created", "order.deleted"}, pub.names())
}

func TestCreateOrder_IdempotentReplay(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository()
	create := NewCreateOrderUseCase(repo, nil, nil)

	first, err := create.Execute(ctx, CreateOrderInput{IdempotencyKey: "cycle-1", Lines: domain.Lines{"desks": 1}})
	require.NoError(t, err)

	again, err := create.Execute(ctx, CreateOrderInput{IdempotencyKey: "cycle-1", Lines: domain.Lines{"desks": 1}})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.OrderID, again.OrderID)

	pending, err := repo.ListUnprocessed(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestCreateOrder_RejectsInvalidLines(t *testing.T) {
	create := NewCreateOrderUseCase(memory.NewOrderRepository(), nil, nil)

	_, err := create.Execute(context.Background(), CreateOrderInput{Lines: domain.Lines{"chairs": -2}})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = create.Execute(context.Background(), CreateOrderInput{Lines: domain.Lines{"sofas": 1}})
	assert.ErrorIs(t, err, domain.ErrUnknownProduct)
}

package warehouse

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
	domwarehouse "github.com/Zhima-Mochi/warehouse-observability/internal/domain/warehouse"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var scenario = FixedDemand{"computers": 3, "chairs": 7, "desks": 2, "cupboards": 9}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("cycle-%d", n)
	}
}

func newTestOrchestrator(orders OrderStore, stockStore StockStore, demand DemandSource, cfg Config, opts ...Option) *Orchestrator {
	opts = append([]Option{WithIDGenerator(sequentialIDs())}, opts...)
	return NewOrchestrator(orders, stockStore, demand, cfg, observability.Nop(), opts...)
}

func TestRandomDemand_QuantitiesWithinRange(t *testing.T) {
	d := NewRandomDemand(7)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		lines := d.Next()
		require.Len(t, lines, len(order.Products))
		for _, p := range order.Products {
			q := lines[p]
			assert.GreaterOrEqual(t, q, 1)
			assert.LessOrEqual(t, q, 10)
			seen[q] = true
		}
	}
	assert.Len(t, seen, 10, "every value in [1,10] is drawn")
}

func TestRunCycle_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	orders := newFakeOrders(42)
	levels := fullStock(500)
	levels["computers"] = 43
	stockStore := newFakeStock(levels)
	pub := &capturePublisher{}

	o := newTestOrchestrator(orders, stockStore, scenario, Config{}, WithPublisher(pub))
	res := o.RunCycle(ctx)

	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "cycle-1", res.CycleID)
	assert.Equal(t, int64(42), res.OrderID)

	decreases := stockStore.ops("decrease")
	require.Len(t, decreases, 4)
	for i, p := range order.Products {
		assert.Equal(t, p, decreases[i].Product)
		assert.Equal(t, scenario[p], decreases[i].Quantity)
		assert.Equal(t, "order-cycle-1", decreases[i].Key, "keyed on the order's creation key")
	}

	increases := stockStore.ops("increase")
	require.Len(t, increases, 1)
	assert.Equal(t, stockCall{Op: "increase", Product: "computers", Quantity: 100}, increases[0])
	assert.Equal(t, 140, stockStore.levels["computers"])

	assert.Equal(t, []int64{42}, orders.deleted)
	pending, err := orders.ListUnprocessed(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.Equal(t, 1, pub.count())
	evt, ok := pub.events[0].(domwarehouse.CycleCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, "succeeded", evt.Outcome)
	assert.Len(t, evt.Lines, 4)
	assert.True(t, evt.Lines[0].Replenished)
}

func TestRunCycle_MissingOrderIDDoesNotMutate(t *testing.T) {
	cases := map[string][]PendingOrder{
		"empty list": {},
		"no id":      {{Lines: order.Lines{"desks": 1}}},
	}
	for name, listed := range cases {
		t.Run(name, func(t *testing.T) {
			orders := newFakeOrders(1)
			orders.listOverride = listed
			stockStore := newFakeStock(fullStock(500))

			res := newTestOrchestrator(orders, stockStore, scenario, Config{}).RunCycle(context.Background())

			assert.Equal(t, OutcomeSkipped, res.Outcome)
			assert.Equal(t, StatusMissingOrderID, res.Status)
			assert.ErrorIs(t, res.Err, ErrMissingOrderID)
			assert.Empty(t, stockStore.calls)
			assert.Empty(t, orders.deleted)
		})
	}
}

func TestRunCycle_DecreaseErrorSkipsCheckAndIncrease(t *testing.T) {
	orders := newFakeOrders(7)
	stockStore := newFakeStock(fullStock(50))
	stockStore.decreaseErr["chairs"] = &CallError{Peer: "stock-controller", Endpoint: "/decreasestock", StatusCode: 200, Err: ErrTransport}

	res := newTestOrchestrator(orders, stockStore, scenario, Config{}).RunCycle(context.Background())

	assert.Equal(t, []string{"decrease"}, stockStore.callsFor("chairs"))
	for _, p := range []string{"computers", "desks", "cupboards"} {
		assert.Equal(t, []string{"decrease", "check", "increase"}, stockStore.callsFor(p), p)
	}

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, StatusFulfillmentIncomplete, res.Status)
	assert.ErrorIs(t, res.Err, ErrTransport)
	require.Len(t, res.FailedLines(), 1)
	assert.Equal(t, "chairs", res.FailedLines()[0].Product)
	assert.Empty(t, orders.deleted, "a partially fulfilled order is retained")
}

func TestRunCycle_RetryDoesNotDoubleDecrement(t *testing.T) {
	ctx := context.Background()
	orders := newFakeOrders(9)
	stockStore := newFakeStock(fullStock(500))
	stockStore.decreaseErr["desks"] = errors.New("stock-controller unavailable")

	o := newTestOrchestrator(orders, stockStore, FixedDemand{"computers": 3, "desks": 2}, Config{})
	first := o.RunCycle(ctx)
	require.Equal(t, StatusFulfillmentIncomplete, first.Status)
	assert.Equal(t, 497, stockStore.levels["computers"])

	delete(stockStore.decreaseErr, "desks")
	second := o.RunCycle(ctx)

	// the second cycle submits new demand (order 10) but fulfills the oldest, order 9
	assert.Equal(t, int64(9), second.OrderID)
	assert.Equal(t, OutcomeSucceeded, second.Outcome)
	assert.Equal(t, 497, stockStore.levels["computers"])
	assert.Equal(t, 498, stockStore.levels["desks"])
	assert.Equal(t, []int64{9}, orders.deleted)
}

func TestRunCycle_ReplayedDecreaseSkipsReplenish(t *testing.T) {
	ctx := context.Background()
	orders := newFakeOrders(3)
	stockStore := newFakeStock(fullStock(50))
	stockStore.decreaseErr["desks"] = errors.New("stock-controller unavailable")

	o := newTestOrchestrator(orders, stockStore, FixedDemand{"computers": 3, "desks": 2}, Config{})
	first := o.RunCycle(ctx)
	require.Equal(t, StatusFulfillmentIncomplete, first.Status)
	assert.Equal(t, 147, stockStore.levels["computers"])

	delete(stockStore.decreaseErr, "desks")
	second := o.RunCycle(ctx)
	require.Equal(t, OutcomeSucceeded, second.Outcome)

	assert.Equal(t, []string{"decrease", "check", "increase", "decrease"}, stockStore.callsFor("computers"))
	assert.Equal(t, 147, stockStore.levels["computers"], "a replayed line is not restocked again")
	require.Len(t, second.Lines, 2)
	assert.True(t, second.Lines[0].Replayed)
	assert.True(t, second.Lines[0].Decreased)
	assert.False(t, second.Lines[0].Replenished)
	assert.False(t, second.Lines[1].Replayed)
	assert.True(t, second.Lines[1].Replenished)
}

func TestRunCycle_OrderStoreRestartStillDecrements(t *testing.T) {
	ctx := context.Background()
	stockStore := newFakeStock(fullStock(500))
	ids := sequentialIDs()
	demand := FixedDemand{"computers": 3}

	// both stores hand out id 1, as an in-memory order store does after a restart
	for i, want := range []int{497, 494} {
		orders := newFakeOrders(1)
		o := NewOrchestrator(orders, stockStore, demand, Config{}, observability.Nop(), WithIDGenerator(ids))

		res := o.RunCycle(ctx)
		require.Equal(t, OutcomeSucceeded, res.Outcome, "cycle %d", i)
		assert.Equal(t, int64(1), res.OrderID)
		assert.False(t, res.Lines[0].Replayed, "cycle %d", i)
		assert.Equal(t, want, stockStore.levels["computers"], "cycle %d", i)
	}
}

func TestIdempotencyKey(t *testing.T) {
	assert.Equal(t, "order-cycle-7", IdempotencyKey(PendingOrder{ID: 1, Key: "cycle-7"}))
	assert.Equal(t, "order-12", IdempotencyKey(PendingOrder{ID: 12}))
}

func TestRunCycle_ReplenishOnlyBelowThreshold(t *testing.T) {
	levels := map[string]int{"computers": 103, "chairs": 107, "desks": 100, "cupboards": 500}
	stockStore := newFakeStock(levels)

	res := newTestOrchestrator(newFakeOrders(1), stockStore, scenario, Config{}).RunCycle(context.Background())
	require.Equal(t, OutcomeSucceeded, res.Outcome)

	// computers 103-3=100 stays, chairs 107-7=100 stays, desks 100-2=98 is topped up
	increases := stockStore.ops("increase")
	require.Len(t, increases, 1)
	assert.Equal(t, "desks", increases[0].Product)
	assert.Equal(t, 100, increases[0].Quantity)
}

func TestRunCycle_CheckFailureIsLoggedOnly(t *testing.T) {
	stockStore := newFakeStock(fullStock(10))
	stockStore.checkErr["computers"] = fmt.Errorf("%w: bad body", ErrMalformedResponse)
	orders := newFakeOrders(1)

	res := newTestOrchestrator(orders, stockStore, scenario, Config{}).RunCycle(context.Background())

	assert.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, []string{"decrease", "check"}, stockStore.callsFor("computers"))
	assert.False(t, res.Lines[0].Replenished)
	assert.Equal(t, []int64{1}, orders.deleted)
}

func TestRunCycle_DemandSubmitFailureAborts(t *testing.T) {
	orders := newFakeOrders(1)
	orders.createErr = &CallError{Peer: "order-processor", Endpoint: "/addorders", Err: ErrTransport}
	stockStore := newFakeStock(fullStock(500))

	res := newTestOrchestrator(orders, stockStore, scenario, Config{}).RunCycle(context.Background())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, StatusDemandSubmitFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrTransport)
	assert.Zero(t, orders.lists)
	assert.Empty(t, stockStore.calls)
}

func TestRunCycle_MalformedPendingResponse(t *testing.T) {
	orders := newFakeOrders(1)
	orders.listErr = &CallError{Peer: "order-processor", Endpoint: "/checkorders", StatusCode: 200, Err: ErrMalformedResponse}
	stockStore := newFakeStock(fullStock(500))

	res := newTestOrchestrator(orders, stockStore, scenario, Config{}).RunCycle(context.Background())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, StatusPendingFetchFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrMalformedResponse)
	var callErr *CallError
	require.ErrorAs(t, res.Err, &callErr)
	assert.Equal(t, "/checkorders", callErr.Endpoint)
	assert.Empty(t, stockStore.calls)
}

func TestRunCycle_RetireFailureKeepsOrder(t *testing.T) {
	orders := newFakeOrders(1)
	orders.deleteErr = &CallError{Peer: "order-processor", Endpoint: "/deleteorders", StatusCode: 500, Err: ErrTransport}

	res := newTestOrchestrator(orders, newFakeStock(fullStock(500)), scenario, Config{}).RunCycle(context.Background())

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, StatusOrderRetireFailed, res.Status)
	assert.ErrorIs(t, res.Err, ErrTransport)
}

func TestRunCycle_FulfillmentSource(t *testing.T) {
	pendingLines := order.Lines{"computers": 1, "chairs": 0, "desks": 0, "cupboards": 0}

	for _, tc := range []struct {
		source FulfillmentSource
		want   int
	}{
		{SourcePending, 1},
		{SourceDemand, 4},
	} {
		t.Run(string(tc.source), func(t *testing.T) {
			orders := newFakeOrders(1)
			orders.listOverride = []PendingOrder{{ID: 5, Lines: pendingLines}}
			orders.orders[5] = pendingLines
			stockStore := newFakeStock(fullStock(500))

			res := newTestOrchestrator(orders, stockStore, scenario, Config{Source: tc.source}).RunCycle(context.Background())
			require.Equal(t, OutcomeSucceeded, res.Outcome)
			assert.Len(t, stockStore.ops("decrease"), tc.want)
		})
	}
}

func TestRunCycle_PerCallTimeout(t *testing.T) {
	stockStore := newFakeStock(fullStock(500))
	stockStore.block = true

	start := time.Now()
	res := newTestOrchestrator(newFakeOrders(1), stockStore, FixedDemand{"desks": 1}, Config{CallTimeout: 20 * time.Millisecond}).
		RunCycle(context.Background())

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, StatusFulfillmentIncomplete, res.Status)
}

func TestRunCycle_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	orders := newFakeOrders(1)

	res := newTestOrchestrator(orders, newFakeStock(fullStock(500)), scenario, Config{}).RunCycle(ctx)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, StatusCanceled, res.Status)
	assert.Zero(t, orders.creates)
}

func TestRun_LoopsUntilCanceled(t *testing.T) {
	orders := newFakeOrders(1)
	pub := &capturePublisher{}
	o := newTestOrchestrator(orders, newFakeStock(fullStock(500)), scenario,
		Config{Interval: 5 * time.Millisecond}, WithPublisher(pub))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(ctx)
	}()

	require.Eventually(t, func() bool { return pub.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.GreaterOrEqual(t, len(orders.deleted), 3)
}

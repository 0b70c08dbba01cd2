package warehouse

import (
	"context"
	"sort"
	"sync"

	"github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/warehouse-observability/internal/domain/outbox"
)

type fakeOrders struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]order.Lines
	keys   map[string]int64
	// createKeys is the creation key per id, as /checkorders reports it.
	createKeys map[int64]string
	deleted    []int64
	creates    int
	lists      int

	createErr error
	listErr   error
	deleteErr error
	// listOverride replaces the stored view when set.
	listOverride []PendingOrder
}

func newFakeOrders(firstID int64) *fakeOrders {
	return &fakeOrders{
		nextID: firstID,
		orders: make(map[int64]order.Lines),
		keys:   make(map[string]int64),
	}
}

func (f *fakeOrders) Create(_ context.Context, lines order.Lines, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return 0, f.createErr
	}
	if id, ok := f.keys[key]; ok && key != "" {
		return id, nil
	}
	id := f.nextID
	f.nextID++
	f.orders[id] = lines.Normalize()
	if key != "" {
		f.keys[key] = id
	}
	if f.createKeys == nil {
		f.createKeys = make(map[int64]string)
	}
	f.createKeys[id] = key
	return id, nil
}

func (f *fakeOrders) ListUnprocessed(_ context.Context) ([]PendingOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.listOverride != nil {
		return f.listOverride, nil
	}
	out := make([]PendingOrder, 0, len(f.orders))
	for id, lines := range f.orders {
		out = append(out, PendingOrder{ID: id, Key: f.createKeys[id], Lines: lines})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeOrders) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.orders[id]; !ok {
		return &CallError{Peer: "order-processor", Endpoint: "/deleteorders", StatusCode: 404, Err: ErrTransport}
	}
	delete(f.orders, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type stockCall struct {
	Op       string
	Product  string
	Quantity int
	Key      string
}

type fakeStock struct {
	mu      sync.Mutex
	levels  map[string]int
	applied map[string]bool
	calls   []stockCall

	decreaseErr map[string]error
	checkErr    map[string]error
	// block makes Decrease wait for ctx cancellation.
	block bool
}

func newFakeStock(levels map[string]int) *fakeStock {
	return &fakeStock{
		levels:      levels,
		applied:     make(map[string]bool),
		decreaseErr: make(map[string]error),
		checkErr:    make(map[string]error),
	}
}

func (f *fakeStock) Check(_ context.Context, product string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, stockCall{Op: "check", Product: product})
	if err := f.checkErr[product]; err != nil {
		return 0, err
	}
	return f.levels[product], nil
}

func (f *fakeStock) Increase(_ context.Context, product string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, stockCall{Op: "increase", Product: product, Quantity: quantity})
	f.levels[product] += quantity
	return nil
}

func (f *fakeStock) Decrease(ctx context.Context, product string, quantity int, key string) (bool, error) {
	if f.block {
		<-ctx.Done()
		return false, &CallError{Peer: "stock-controller", Endpoint: "/decreasestock", Err: ErrTransport}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, stockCall{Op: "decrease", Product: product, Quantity: quantity, Key: key})
	if err := f.decreaseErr[product]; err != nil {
		return false, err
	}
	if f.applied[key+"/"+product] {
		return false, nil
	}
	f.applied[key+"/"+product] = true
	f.levels[product] -= quantity
	return true, nil
}

func (f *fakeStock) ops(op string) []stockCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []stockCall
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeStock) callsFor(product string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.Product == product {
			out = append(out, c.Op)
		}
	}
	return out
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
}

func (p *capturePublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func fullStock(n int) map[string]int {
	levels := make(map[string]int, len(order.Products))
	for _, p := range order.Products {
		levels[p] = n
	}
	return levels
}

package warehouse

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
)

const (
	minDemand = 1
	maxDemand = 10
)

// RandomDemand draws each catalog product uniformly from [1,10].
type RandomDemand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomDemand(seed uint64) *RandomDemand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomDemand{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (d *RandomDemand) Next() order.Lines {
	d.mu.Lock()
	defer d.mu.Unlock()

	lines := make(order.Lines, len(order.Products))
	for _, p := range order.Products {
		lines[p] = minDemand + d.rng.IntN(maxDemand-minDemand+1)
	}
	return lines
}

// FixedDemand always returns the same lines.
type FixedDemand order.Lines

func (d FixedDemand) Next() order.Lines {
	return order.Lines(d).Normalize()
}

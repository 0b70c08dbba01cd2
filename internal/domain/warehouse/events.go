package warehouse

import "time"

// LineSummary is the per-product outcome carried by CycleCompletedEvent.
type LineSummary struct {
	Product     string `json:"product"`
	Quantity    int    `json:"quantity"`
	Decreased   bool   `json:"decreased"`
	Replayed    bool   `json:"replayed,omitempty"`
	Replenished bool   `json:"replenished"`
	Error       string `json:"error,omitempty"`
}

// CycleCompletedEvent is published once per orchestration cycle, whatever its outcome.
type CycleCompletedEvent struct {
	CycleID    string        `json:"cycle_id"`
	OrderID    int64         `json:"order_id,omitempty"`
	Outcome    string        `json:"outcome"`
	Status     string        `json:"status"`
	Lines      []LineSummary `json:"lines,omitempty"`
	Error      string        `json:"error,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func (CycleCompletedEvent) EventName() string { return "warehouse.cycle_completed" }

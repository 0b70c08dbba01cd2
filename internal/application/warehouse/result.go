package warehouse

import (
	"time"

	domwarehouse "github.com/Zhima-Mochi/warehouse-observability/internal/domain/warehouse"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

const (
	StatusOK                    = "OK"
	StatusDemandSubmitFailed    = "DEMAND_SUBMIT_FAILED"
	StatusPendingFetchFailed    = "PENDING_FETCH_FAILED"
	StatusMissingOrderID        = "MISSING_ORDER_ID"
	StatusFulfillmentIncomplete = "FULFILLMENT_INCOMPLETE"
	StatusOrderRetireFailed     = "ORDER_RETIRE_FAILED"
	StatusCanceled              = "CONTEXT_CANCELED"
)

// LineResult is the fulfillment outcome of one product.
type LineResult struct {
	Product     string
	Quantity    int
	Decreased   bool
	Replayed    bool
	Replenished bool
	Err         error
}

// CycleResult tells callers whether a cycle made progress, had nothing to do, or failed.
type CycleResult struct {
	CycleID string
	Outcome Outcome
	Status  string
	OrderID int64
	Lines   []LineResult
	Err     error
}

func (r *CycleResult) finish(outcome Outcome, status string, err error) {
	r.Outcome, r.Status, r.Err = outcome, status, err
}

// FailedLines returns the lines whose decrease did not go through.
func (r CycleResult) FailedLines() []LineResult {
	var out []LineResult
	for _, l := range r.Lines {
		if l.Err != nil {
			out = append(out, l)
		}
	}
	return out
}

func (r CycleResult) event() domwarehouse.CycleCompletedEvent {
	e := domwarehouse.CycleCompletedEvent{
		CycleID:    r.CycleID,
		OrderID:    r.OrderID,
		Outcome:    string(r.Outcome),
		Status:     r.Status,
		OccurredAt: time.Now().UTC(),
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	for _, l := range r.Lines {
		s := domwarehouse.LineSummary{
			Product:     l.Product,
			Quantity:    l.Quantity,
			Decreased:   l.Decreased,
			Replayed:    l.Replayed,
			Replenished: l.Replenished,
		}
		if l.Err != nil {
			s.Error = l.Err.Error()
		}
		e.Lines = append(e.Lines, s)
	}
	return e
}

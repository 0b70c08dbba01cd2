package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/Zhima-Mochi/warehouse-observability/internal/application/warehouse"
	"github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability/logctx"

	"go.opentelemetry.io/otel/propagation"
)

const orderPeer = "order-processor"

// OrderClient talks to the order-processor service.
type OrderClient struct {
	c *client
}

var _ warehouse.OrderStore = (*OrderClient)(nil)

func NewOrderClient(baseURL string, httpClient *http.Client, prop propagation.TextMapPropagator, tel observability.Observability) *OrderClient {
	return &OrderClient{c: newClient(orderPeer, baseURL, httpClient, prop, tel)}
}

type createOrderResponse struct {
	OrderID *int64 `json:"order_id"`
}

func (o *OrderClient) Create(ctx context.Context, lines order.Lines, idempotencyKey string) (int64, error) {
	const endpoint = "/addorders"
	resp, err := o.c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: endpoint,
		path:     endpoint,
		body:     lines.Normalize(),
		headers:  map[string]string{headerIdempotencyKey: idempotencyKey},
	})
	if err != nil {
		return 0, err
	}
	var out createOrderResponse
	if err := o.c.decodeObject(endpoint, resp, &out); err != nil {
		return 0, err
	}
	if out.OrderID == nil {
		return 0, o.c.callError(endpoint, resp.status, warehouse.ErrMalformedResponse, fmt.Errorf("order_id missing"))
	}
	return *out.OrderID, nil
}

// ListUnprocessed accepts a JSON array or a single object and reports only the
// oldest order: the first element of an array. A first element that is not an
// object, or any other JSON value, is treated as no pending order.
func (o *OrderClient) ListUnprocessed(ctx context.Context) ([]warehouse.PendingOrder, error) {
	const endpoint = "/checkorders"
	resp, err := o.c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: endpoint,
		path:     endpoint,
	})
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(resp.body, &raw); err != nil {
		return nil, o.c.callError(endpoint, resp.status, warehouse.ErrMalformedResponse, err)
	}

	var record map[string]any
	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return []warehouse.PendingOrder{}, nil
		}
		m, ok := v[0].(map[string]any)
		if !ok {
			logctx.FromOr(ctx, o.c.log).Warn("pending_response_unrecognized",
				observability.F("type", fmt.Sprintf("[]%T", v[0])),
			)
			return nil, nil
		}
		record = m
	case map[string]any:
		if _, isErr := v["error"]; isErr {
			return nil, o.c.decodeObject(endpoint, resp, nil)
		}
		record = v
	default:
		logctx.FromOr(ctx, o.c.log).Warn("pending_response_unrecognized",
			observability.F("type", fmt.Sprintf("%T", raw)),
		)
		return nil, nil
	}

	p, err := toPendingOrder(record)
	if err != nil {
		return nil, o.c.callError(endpoint, resp.status, warehouse.ErrMalformedResponse, err)
	}
	return []warehouse.PendingOrder{p}, nil
}

func (o *OrderClient) Delete(ctx context.Context, id int64) error {
	const endpoint = "/deleteorders/{id}"
	resp, err := o.c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: endpoint,
		path:     "/deleteorders/" + strconv.FormatInt(id, 10),
	})
	if err != nil {
		return err
	}
	return o.c.decodeObject(endpoint, resp, nil)
}

// toPendingOrder maps a record to a PendingOrder; a missing order_id yields ID 0
// and a missing idempotency_key an empty Key.
func toPendingOrder(rec map[string]any) (warehouse.PendingOrder, error) {
	p := warehouse.PendingOrder{Lines: make(order.Lines, len(order.Products))}
	if v, ok := rec["order_id"]; ok && v != nil {
		id, err := toInt64(v)
		if err != nil {
			return p, fmt.Errorf("order_id: %w", err)
		}
		p.ID = id
	}
	if key, ok := rec["idempotency_key"].(string); ok {
		p.Key = key
	}
	for _, product := range order.Products {
		v, ok := rec[product]
		if !ok || v == nil {
			p.Lines[product] = 0
			continue
		}
		q, err := toInt(v)
		if err != nil {
			return p, fmt.Errorf("%s: %w", product, err)
		}
		p.Lines[product] = q
	}
	return p, nil
}

// maxExactFloat is the largest magnitude at which every integer is exactly
// representable as a float64.
const maxExactFloat = 1 << 53

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		if n < -maxExactFloat || n > maxExactFloat {
			return 0, fmt.Errorf("%v is out of range", n)
		}
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// toInt bounds quantities to 32 bits so they fit int on every platform.
func toInt(v any) (int, error) {
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%d is out of range", n)
	}
	return int(n), nil
}

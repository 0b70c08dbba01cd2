package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Zhima-Mochi/warehouse-observability/internal/application/warehouse"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"

	"go.opentelemetry.io/otel/propagation"
)

const stockPeer = "stock-controller"

// StockClient talks to the stock-controller service.
type StockClient struct {
	c *client
}

var _ warehouse.StockStore = (*StockClient)(nil)

func NewStockClient(baseURL string, httpClient *http.Client, prop propagation.TextMapPropagator, tel observability.Observability) *StockClient {
	return &StockClient{c: newClient(stockPeer, baseURL, httpClient, prop, tel)}
}

type stockAdjustment struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type stockLevel struct {
	Product  string `json:"product"`
	Quantity *int   `json:"quantity"`
}

func (s *StockClient) Check(ctx context.Context, product string) (int, error) {
	const endpoint = "/checkstock"
	resp, err := s.c.do(ctx, request{
		method:   http.MethodGet,
		endpoint: endpoint,
		path:     endpoint,
		query:    url.Values{"product": {product}},
	})
	if err != nil {
		return 0, err
	}
	var out stockLevel
	if err := s.c.decodeObject(endpoint, resp, &out); err != nil {
		return 0, err
	}
	if out.Quantity == nil {
		return 0, s.c.callError(endpoint, resp.status, warehouse.ErrMalformedResponse, fmt.Errorf("quantity missing"))
	}
	return *out.Quantity, nil
}

type adjustResponse struct {
	Replayed bool `json:"replayed"`
}

func (s *StockClient) Increase(ctx context.Context, product string, quantity int) error {
	_, err := s.adjust(ctx, "/increasestock", product, quantity, "")
	return err
}

// Decrease reports applied=false when the peer answered with a replay of an
// earlier decrease under the same key.
func (s *StockClient) Decrease(ctx context.Context, product string, quantity int, idempotencyKey string) (bool, error) {
	out, err := s.adjust(ctx, "/decreasestock", product, quantity, idempotencyKey)
	if err != nil {
		return false, err
	}
	return !out.Replayed, nil
}

func (s *StockClient) adjust(ctx context.Context, endpoint, product string, quantity int, key string) (adjustResponse, error) {
	var out adjustResponse
	resp, err := s.c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: endpoint,
		path:     endpoint,
		body:     stockAdjustment{Product: product, Quantity: quantity},
		headers:  map[string]string{headerIdempotencyKey: key},
	})
	if err != nil {
		return out, err
	}
	err = s.c.decodeObject(endpoint, resp, &out)
	return out, err
}

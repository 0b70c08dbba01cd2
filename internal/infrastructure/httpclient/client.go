package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/Zhima-Mochi/warehouse-observability/internal/application/warehouse"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability"
	"github.com/Zhima-Mochi/warehouse-observability/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

const (
	headerRequestID      = "X-Request-ID"
	headerIdempotencyKey = "Idempotency-Key"
	maxBodyBytes         = 1 << 20
	defaultTimeout       = 10 * time.Second
)

// client performs one JSON request per call against a peer service, with a
// client span, W3C header injection and external request metrics.
type client struct {
	peer    string
	baseURL string
	http    *http.Client
	tracer  observability.Tracer
	prop    propagation.TextMapPropagator
	log     observability.Logger

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func newClient(peer, baseURL string, httpClient *http.Client, prop propagation.TextMapPropagator, tel observability.Observability) *client {
	if tel == nil {
		tel = observability.Nop()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if prop == nil {
		prop = propagation.TraceContext{}
	}
	return &client{
		peer:         peer,
		baseURL:      baseURL,
		http:         httpClient,
		tracer:       tel.Tracer(),
		prop:         prop,
		log:          tel.Logger().With(observability.F("component", "http_client"), observability.F("peer", peer)),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

type request struct {
	method   string
	endpoint string // low-cardinality route template, used for spans and metrics
	path     string
	query    url.Values
	body     any
	headers  map[string]string
}

type response struct {
	status int
	body   []byte
}

// do sends r and enforces the transport contract: 2xx status and a JSON body.
func (c *client) do(ctx context.Context, r request) (_ *response, err error) {
	ctx, span := c.tracer.Start(ctx, "HTTP "+r.method+" "+r.endpoint,
		attribute.String("http.method", r.method),
		attribute.String("http.route", r.endpoint),
		attribute.String("peer.service", c.peer),
	)
	start := time.Now()
	status := 0

	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
		}
		if status != 0 {
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
		// 2xx and 3xx are OK; everything else, including no response, is an error
		if status >= 200 && status < 400 && err == nil {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		span.End()

		c.extCounter.Add(1,
			observability.L("peer", c.peer),
			observability.L("endpoint", r.endpoint),
			observability.L("outcome", outcome),
		)
		c.extHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", c.peer),
			observability.L("endpoint", r.endpoint),
		)
		if err != nil {
			logctx.FromOr(ctx, c.log).Debug("peer_call_failed",
				observability.F("peer", c.peer),
				observability.F("endpoint", r.endpoint),
				observability.F("status_code", status),
				observability.Err(err),
			)
		}
	}()

	var body io.Reader
	if r.body != nil {
		raw, merr := json.Marshal(r.body)
		if merr != nil {
			return nil, fmt.Errorf("httpclient: encode %s body: %w", r.endpoint, merr)
		}
		body = bytes.NewReader(raw)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, c.callError(r.endpoint, 0, warehouse.ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logctx.CorrelationID(ctx); id != "" {
		req.Header.Set(headerRequestID, id)
	}
	for k, v := range r.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	c.prop.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.callError(r.endpoint, 0, warehouse.ErrTransport, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.callError(r.endpoint, status, warehouse.ErrTransport, err)
	}
	if status < 200 || status > 299 {
		return nil, c.callError(r.endpoint, status, warehouse.ErrTransport, errors.New(peerMessage(raw)))
	}
	if !isJSON(resp.Header.Get("Content-Type")) {
		return nil, c.callError(r.endpoint, status, warehouse.ErrMalformedResponse,
			fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type")))
	}
	return &response{status: status, body: raw}, nil
}

// decodeObject unmarshals a JSON object into dst, rejecting bodies that carry
// an "error" member even under a 2xx status.
func (c *client) decodeObject(endpoint string, resp *response, dst any) error {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(resp.body, &envelope); err != nil {
		return c.callError(endpoint, resp.status, warehouse.ErrMalformedResponse, err)
	}
	if msg, ok := envelope["error"]; ok {
		return c.callError(endpoint, resp.status, warehouse.ErrTransport, fmt.Errorf("peer reported error: %s", string(msg)))
	}
	if dst == nil {
		return nil
	}
	if err := json.Unmarshal(resp.body, dst); err != nil {
		return c.callError(endpoint, resp.status, warehouse.ErrMalformedResponse, err)
	}
	return nil
}

func (c *client) callError(endpoint string, status int, kind, cause error) error {
	return &warehouse.CallError{
		Peer:       c.peer,
		Endpoint:   endpoint,
		StatusCode: status,
		Err:        fmt.Errorf("%w: %w", kind, cause),
	}
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

// peerMessage extracts "error" or "message" from a JSON error body.
func peerMessage(raw []byte) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if len(raw) > 200 {
		raw = raw[:200]
	}
	return string(bytes.TrimSpace(raw))
}

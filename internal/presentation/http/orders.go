package httppresentation

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Zhima-Mochi/warehouse-observability/internal/application"
	appOrder "github.com/Zhima-Mochi/warehouse-observability/internal/application/order"
	domainOrder "github.com/Zhima-Mochi/warehouse-observability/internal/domain/order"
)

// OrderHandler serves the order-processor routes.
type OrderHandler struct {
	create application.UseCase[appOrder.CreateOrderInput, *appOrder.CreateOrderResult]
	list   application.UseCase[appOrder.ListUnprocessedInput, []*domainOrder.Order]
	delete application.UseCase[appOrder.DeleteOrderInput, struct{}]
}

func NewOrderHandler(
	create application.UseCase[appOrder.CreateOrderInput, *appOrder.CreateOrderResult],
	list application.UseCase[appOrder.ListUnprocessedInput, []*domainOrder.Order],
	del application.UseCase[appOrder.DeleteOrderInput, struct{}],
) *OrderHandler {
	return &OrderHandler{create: create, list: list, delete: del}
}

func (h *OrderHandler) Register(s *Server) {
	s.Handle(http.MethodPost, "/addorders", h.handleAddOrder)
	s.Handle(http.MethodGet, "/checkorders", h.handleCheckOrders)
	s.Handle(http.MethodGet, "/deleteorders/{id}", h.handleDeleteOrder)
}

type addOrderResponse struct {
	Message string `json:"message"`
	OrderID int64  `json:"order_id"`
}

func (h *OrderHandler) handleAddOrder(w http.ResponseWriter, r *http.Request) {
	var lines domainOrder.Lines
	if err := decodeJSON(r, &lines); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.create.Execute(r.Context(), appOrder.CreateOrderInput{
		IdempotencyKey: r.Header.Get(headerIdempotencyKey),
		Lines:          lines,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, addOrderResponse{
		Message: "Order added successfully",
		OrderID: result.OrderID,
	})
}

type orderView struct {
	OrderID        int64  `json:"order_id"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	Computers      int    `json:"computers"`
	Chairs         int    `json:"chairs"`
	Desks          int    `json:"desks"`
	Cupboards      int    `json:"cupboards"`
}

func (h *OrderHandler) handleCheckOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.list.Execute(r.Context(), appOrder.ListUnprocessedInput{})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderView{
			OrderID:        o.ID,
			IdempotencyKey: o.IdempotencyKey,
			Computers:      o.Lines["computers"],
			Chairs:         o.Lines["chairs"],
			Desks:          o.Lines["desks"],
			Cupboards:      o.Lines["cupboards"],
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrderHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("order id must be a positive integer"))
		return
	}

	if _, err := h.delete.Execute(r.Context(), appOrder.DeleteOrderInput{OrderID: id}); err != nil {
		writeOrderError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Order %d deleted successfully", id),
	})
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainOrder.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Order not found"})
	case errors.Is(err, domainOrder.ErrInvalidQuantity),
		errors.Is(err, domainOrder.ErrUnknownProduct):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

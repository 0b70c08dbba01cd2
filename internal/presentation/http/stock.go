package httppresentation

import (
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/warehouse-observability/internal/application"
	appStock "github.com/Zhima-Mochi/warehouse-observability/internal/application/stock"
	domainStock "github.com/Zhima-Mochi/warehouse-observability/internal/domain/stock"
)

// StockHandler serves the stock-controller routes.
type StockHandler struct {
	check  application.UseCase[appStock.CheckStockInput, *domainStock.Level]
	adjust application.UseCase[appStock.AdjustStockInput, *appStock.AdjustStockResult]
}

func NewStockHandler(
	check application.UseCase[appStock.CheckStockInput, *domainStock.Level],
	adjust application.UseCase[appStock.AdjustStockInput, *appStock.AdjustStockResult],
) *StockHandler {
	return &StockHandler{check: check, adjust: adjust}
}

func (h *StockHandler) Register(s *Server) {
	s.Handle(http.MethodGet, "/checkstock", h.handleCheckStock)
	s.Handle(http.MethodPost, "/increasestock", h.handleAdjust(appStock.Increase))
	s.Handle(http.MethodPost, "/decreasestock", h.handleAdjust(appStock.Decrease))
}

type stockLevelResponse struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

func (h *StockHandler) handleCheckStock(w http.ResponseWriter, r *http.Request) {
	level, err := h.check.Execute(r.Context(), appStock.CheckStockInput{
		Product: r.URL.Query().Get("product"),
	})
	if err != nil {
		writeStockError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockLevelResponse{Product: level.Product, Quantity: level.Quantity})
}

type adjustStockRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type adjustStockResponse struct {
	Message  string `json:"message"`
	Replayed bool   `json:"replayed,omitempty"`
}

func (h *StockHandler) handleAdjust(direction appStock.Direction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adjustStockRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		cmd := appStock.AdjustStockInput{
			Direction: direction,
			Product:   req.Product,
			Quantity:  req.Quantity,
		}
		if direction == appStock.Decrease {
			cmd.IdempotencyKey = r.Header.Get(headerIdempotencyKey)
		}

		result, err := h.adjust.Execute(r.Context(), cmd)
		if err != nil {
			writeStockError(w, err)
			return
		}

		switch {
		case direction == appStock.Increase:
			writeJSON(w, http.StatusOK, adjustStockResponse{Message: "Stock increased successfully"})
		case !result.Applied:
			writeJSON(w, http.StatusOK, adjustStockResponse{Message: "Stock decrease already applied", Replayed: true})
		default:
			writeJSON(w, http.StatusOK, adjustStockResponse{Message: "Stock decreased successfully"})
		}
	}
}

func writeStockError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainStock.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Product not found"})
	case errors.Is(err, domainStock.ErrInvalidQuantity),
		errors.Is(err, appStock.ErrProductRequired):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/listing"
	"github.com/vasiliy-maslov/pharmacy-marketplace/internal/order"
)

type LineItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

type PlaceOrderRequest struct {
	Items []LineItemRequest `json:"items" validate:"required,min=1,dive"`
}

type UpdateOrderStatusRequest struct {
	Status         *string `json:"status,omitempty" validate:"omitempty,min=1"`
	DeliveryStatus *string `json:"delivery_status,omitempty" validate:"omitempty,min=1,max=100"`
}

type OrderHandler struct {
	service  order.Service
	validate *validator.Validate
}

func NewOrderHandler(service order.Service) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts the storefront routes. The router must authenticate.
func (h *OrderHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handlePlaceOrder)
	router.Get("/orders", h.handleListMyOrders)
	router.Get("/orders/{id}", h.handleGetMyOrder)
	router.Post("/orders/{id}/cancel", h.handleCancelOrder)
}

// RegisterAdminRoutes mounts the staff routes. The router must require the
// admin role.
func (h *OrderHandler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Patch("/orders/{id}/status", h.handleUpdateStatus)
	router.Post("/orders/{id}/deliver", h.handleMarkDelivered)
}

func (h *OrderHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req PlaceOrderRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	items := make([]order.LineItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, order.LineItemInput{
			ProductID: uuid.FromStringOrNil(item.ProductID),
			Quantity:  item.Quantity,
		})
	}

	placed, err := h.service.PlaceOrder(r.Context(), user, items)
	if err != nil {
		respondWithServiceError(w, err, "Failed to place order")
		return
	}

	respondWithJSON(w, http.StatusCreated, placed)
}

func (h *OrderHandler) handleListMyOrders(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	orders, err := h.service.GetOrdersByUserID(r.Context(), user.ID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}

	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetMyOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.service.GetUserOrder(r.Context(), user, orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	cancelled, err := h.service.CancelOrder(r.Context(), orderID, user)
	if err != nil {
		respondWithServiceError(w, err, "Failed to cancel order")
		return
	}

	respondWithJSON(w, http.StatusOK, cancelled)
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := listing.NewOrderQuery(listing.FromValues(r.URL.Query()))

	page, err := h.service.ListOrders(r.Context(), q)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list orders")
		return
	}

	respondWithJSON(w, http.StatusOK, page)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	o, err := h.service.GetOrderByID(r.Context(), orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get order")
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if !decodeAndValidate(w, r, h.validate, &req) {
		return
	}

	var status *order.OrderStatus
	if req.Status != nil {
		s := order.OrderStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		status = &s
	}

	updated, err := h.service.UpdateOrderStatus(r.Context(), orderID, status, req.DeliveryStatus)
	if err != nil {
		respondWithServiceError(w, err, "Failed to update order status")
		return
	}

	log.Info().Stringer("order_id", orderID).Msg("Order status updated via admin API")
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) handleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	delivered, err := h.service.MarkDelivered(r.Context(), orderID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to mark order delivered")
		return
	}

	respondWithJSON(w, http.StatusOK, delivered)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"delivery/internal/domain"
	"delivery/internal/middleware"
	"delivery/internal/service"
)

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	orderService *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// LocationBody is a geocoordinate with optional address details.
type LocationBody struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
	Contact string  `json:"contact,omitempty"`
}

// CreateOrderRequest is the HTTP request body for creating an order.
type CreateOrderRequest struct {
	Pickup          LocationBody   `json:"pickup"`
	Drop            LocationBody   `json:"drop"`
	Stops           []LocationBody `json:"stops,omitempty"`
	VehicleTier     string         `json:"vehicle_tier"`
	DistanceMeters  int64          `json:"distance_meters"`
	DurationSeconds int64          `json:"duration_seconds"`
	PromoCode       string         `json:"promo_code,omitempty"`
	PaymentMethod   string         `json:"payment_method"`
}

// CancelOrderRequest is the HTTP request body for cancelling an order.
type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

// PushStatusRequest is the HTTP request body for a driver status push.
type PushStatusRequest struct {
	Status string  `json:"status"`
	Lat    float64 `json:"lat,omitempty"`
	Lng    float64 `json:"lng,omitempty"`
	Note   string  `json:"note,omitempty"`
}

// RateOrderRequest is the HTTP request body for rating a delivery.
type RateOrderRequest struct {
	Rating int `json:"rating"`
}

// OrderResponse is the HTTP response for order data.
type OrderResponse struct {
	ID              string         `json:"id"`
	CustomerID      string         `json:"customer_id"`
	DriverID        string         `json:"driver_id,omitempty"`
	Pickup          LocationBody   `json:"pickup"`
	Drop            LocationBody   `json:"drop"`
	Stops           []LocationBody `json:"stops,omitempty"`
	VehicleTier     string         `json:"vehicle_tier"`
	DistanceMeters  int64          `json:"distance_meters"`
	DurationSeconds int64          `json:"duration_seconds"`
	BaseFare        int64          `json:"base_fare"`
	DistanceFare    int64          `json:"distance_fare"`
	TimeFare        int64          `json:"time_fare"`
	Discount        int64          `json:"discount,omitempty"`
	PromoCode       string         `json:"promo_code,omitempty"`
	TotalFare       int64          `json:"total_fare"`
	PaymentMethod   string         `json:"payment_method"`
	PaymentStatus   string         `json:"payment_status"`
	Status          string         `json:"status"`
	CancelReason    string         `json:"cancel_reason,omitempty"`
	CreatedAt       string         `json:"created_at"`
	CancelledAt     string         `json:"cancelled_at,omitempty"`
	DeliveredAt     string         `json:"delivered_at,omitempty"`
}

// HistoryEntryResponse is one entry of an order's status log.
type HistoryEntryResponse struct {
	Status     string  `json:"status"`
	Lat        float64 `json:"lat,omitempty"`
	Lng        float64 `json:"lng,omitempty"`
	Note       string  `json:"note,omitempty"`
	RecordedAt string  `json:"recorded_at"`
}

// Create handles POST /v1/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	stops := make([]domain.Location, 0, len(req.Stops))
	for _, s := range req.Stops {
		stops = append(stops, toLocation(s))
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), middleware.IdentityFrom(c), service.CreateOrderRequest{
		Pickup:          toLocation(req.Pickup),
		Drop:            toLocation(req.Drop),
		Stops:           stops,
		VehicleTier:     domain.VehicleTier(req.VehicleTier),
		DistanceMeters:  req.DistanceMeters,
		DurationSeconds: req.DurationSeconds,
		PromoCode:       req.PromoCode,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, orderResponse(order))
}

// Get handles GET /v1/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, orderResponse(order))
}

// History handles GET /v1/orders/:id/history
func (h *OrderHandler) History(c *gin.Context) {
	entries, err := h.orderService.History(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, HistoryEntryResponse{
			Status:     string(e.Status),
			Lat:        e.Lat,
			Lng:        e.Lng,
			Note:       e.Note,
			RecordedAt: e.RecordedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	respondJSON(c, http.StatusOK, response)
}

// ListForCustomer handles GET /v1/customers/:id/orders
func (h *OrderHandler) ListForCustomer(c *gin.Context) {
	orders, err := h.orderService.CustomerOrders(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		response = append(response, orderResponse(o))
	}
	respondJSON(c, http.StatusOK, response)
}

// Cancel handles POST /v1/orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, orderResponse(order))
}

// PushStatus handles POST /v1/orders/:id/status
func (h *OrderHandler) PushStatus(c *gin.Context) {
	var req PushStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	order, err := h.orderService.PushStatus(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), service.PushStatusRequest{
		To:   domain.OrderStatus(req.Status),
		Lat:  req.Lat,
		Lng:  req.Lng,
		Note: req.Note,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, orderResponse(order))
}

// Rate handles POST /v1/orders/:id/rating
func (h *OrderHandler) Rate(c *gin.Context) {
	var req RateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.orderService.RateOrder(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"), req.Rating); err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"status": "rated"})
}

func toLocation(b LocationBody) domain.Location {
	return domain.Location{Lat: b.Lat, Lng: b.Lng, Address: b.Address, Contact: b.Contact}
}

func fromLocation(l domain.Location) LocationBody {
	return LocationBody{Lat: l.Lat, Lng: l.Lng, Address: l.Address, Contact: l.Contact}
}

func orderResponse(o *domain.Order) OrderResponse {
	stops := make([]LocationBody, 0, len(o.Stops))
	for _, s := range o.Stops {
		stops = append(stops, fromLocation(s))
	}

	resp := OrderResponse{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		DriverID:        o.DriverID,
		Pickup:          fromLocation(o.Pickup),
		Drop:            fromLocation(o.Drop),
		Stops:           stops,
		VehicleTier:     string(o.VehicleTier),
		DistanceMeters:  o.DistanceMeters,
		DurationSeconds: o.DurationSeconds,
		BaseFare:        o.BaseFare,
		DistanceFare:    o.DistanceFare,
		TimeFare:        o.TimeFare,
		Discount:        o.Discount,
		PromoCode:       o.PromoCode,
		TotalFare:       o.TotalFare,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		Status:          string(o.Status),
		CancelReason:    o.CancelReason,
		CreatedAt:       o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if !o.CancelledAt.IsZero() {
		resp.CancelledAt = o.CancelledAt.Format("2006-01-02T15:04:05Z07:00")
	}
	if !o.DeliveredAt.IsZero() {
		resp.DeliveredAt = o.DeliveredAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

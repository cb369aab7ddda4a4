package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"delivery/internal/auth"
	"delivery/internal/domain"
	"delivery/internal/middleware"
	"delivery/internal/repository"
	"delivery/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverRepo    repository.DriverRepository
	driverService *service.DriverService
	dispatch      *service.DispatchService
	tokens        *auth.TokenService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(
	driverRepo repository.DriverRepository,
	driverService *service.DriverService,
	dispatch *service.DispatchService,
	tokens *auth.TokenService,
) *DriverHandler {
	return &DriverHandler{
		driverRepo:    driverRepo,
		driverService: driverService,
		dispatch:      dispatch,
		tokens:        tokens,
	}
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	VehicleTier  string `json:"vehicle_tier"`
	VehicleMake  string `json:"vehicle_make,omitempty"`
	VehiclePlate string `json:"vehicle_plate,omitempty"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	VehicleTier  string  `json:"vehicle_tier"`
	VehicleMake  string  `json:"vehicle_make,omitempty"`
	VehiclePlate string  `json:"vehicle_plate,omitempty"`
	Online       bool    `json:"online"`
	Rating       float64 `json:"rating"`
	Token        string  `json:"token,omitempty"`
}

// AcceptOrderRequest is the HTTP request body for claiming an order.
type AcceptOrderRequest struct {
	OrderID string `json:"order_id"`
}

// LocationRequest is the HTTP request body for a location push.
type LocationRequest struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	OrderID string  `json:"order_id,omitempty"`
}

// NearbyDriverResponse is one entry in the nearby-drivers listing.
type NearbyDriverResponse struct {
	DriverID string  `json:"driver_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Name == "" || req.Phone == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name and phone are required"})
		return
	}
	tier := domain.VehicleTier(req.VehicleTier)
	if !domain.ValidVehicleTier(tier) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid vehicle tier"})
		return
	}

	existing, err := h.driverRepo.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}

	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{
			"message": "Driver already registered",
			"driver":  driverResponse(existing, ""),
		})
		return
	}

	driver := &domain.Driver{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Phone:        req.Phone,
		VehicleTier:  tier,
		VehicleMake:  req.VehicleMake,
		VehiclePlate: req.VehiclePlate,
		Active:       true,
		CreatedAt:    time.Now(),
	}

	if err := h.driverRepo.Create(c.Request.Context(), driver); err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.Mint(domain.DriverIdentity(driver.ID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, driverResponse(driver, token))
}

// Accept handles POST /v1/drivers/:id/accept
func (h *DriverHandler) Accept(c *gin.Context) {
	driverID := c.Param("id")
	if !middleware.IdentityFrom(c).IsDriver(driverID) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "token does not match driver"})
		return
	}

	var req AcceptOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.dispatch.TryClaim(c.Request.Context(), driverID, req.OrderID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, orderResponse(result.Order))
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	driverID := c.Param("id")
	id := middleware.IdentityFrom(c)
	if !id.IsDriver(driverID) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "token does not match driver"})
		return
	}

	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.driverService.UpdateLocation(c.Request.Context(), id, service.UpdateLocationRequest{
		Lat:     req.Lat,
		Lng:     req.Lng,
		OrderID: req.OrderID,
	}); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// Nearby handles GET /v1/drivers/nearby
func (h *DriverHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng are required numbers"})
		return
	}

	radiusKm := 0.0
	if raw := c.Query("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "radius_km must be a positive number"})
			return
		}
		radiusKm = parsed
	}

	tier := domain.VehicleTier(c.Query("vehicle_tier"))
	drivers, err := h.driverService.NearbyDrivers(c.Request.Context(), lat, lng, radiusKm, tier)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]NearbyDriverResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, NearbyDriverResponse{DriverID: d.DriverID, Lat: d.Lat, Lng: d.Lng})
	}
	respondJSON(c, http.StatusOK, response)
}

// GoOnline handles POST /v1/drivers/:id/online
func (h *DriverHandler) GoOnline(c *gin.Context) {
	driverID := c.Param("id")
	if !middleware.IdentityFrom(c).IsDriver(driverID) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "token does not match driver"})
		return
	}

	tier, err := h.driverService.SetOnline(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "online", "vehicle_tier": string(tier)})
}

// GoOffline handles POST /v1/drivers/:id/offline
func (h *DriverHandler) GoOffline(c *gin.Context) {
	driverID := c.Param("id")
	if !middleware.IdentityFrom(c).IsDriver(driverID) {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "token does not match driver"})
		return
	}

	if err := h.driverService.SetOffline(c.Request.Context(), driverID); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "offline"})
}

func driverResponse(d *domain.Driver, token string) DriverResponse {
	return DriverResponse{
		ID:           d.ID,
		Name:         d.Name,
		Phone:        d.Phone,
		VehicleTier:  string(d.VehicleTier),
		VehicleMake:  d.VehicleMake,
		VehiclePlate: d.VehiclePlate,
		Online:       d.Online,
		Rating:       d.Rating,
		Token:        token,
	}
}

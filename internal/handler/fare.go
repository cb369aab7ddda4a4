package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"delivery/internal/domain"
	"delivery/internal/fare"
	"delivery/internal/repository"
)

// FareHandler handles HTTP requests for fare estimates.
type FareHandler struct {
	promoRepo repository.PromoRepository
}

// NewFareHandler creates a new FareHandler.
func NewFareHandler(promoRepo repository.PromoRepository) *FareHandler {
	return &FareHandler{promoRepo: promoRepo}
}

// EstimateResponse is the HTTP response for a fare estimate. The
// estimate is a preview: nothing is reserved, and the promo usage slot
// is only consumed when the order is created.
type EstimateResponse struct {
	VehicleTier  string       `json:"vehicle_tier"`
	Rate         RateResponse `json:"rate"`
	BaseFare     int64        `json:"base_fare"`
	DistanceFare int64        `json:"distance_fare"`
	TimeFare     int64        `json:"time_fare"`
	Discount     int64        `json:"discount,omitempty"`
	PromoCode    string       `json:"promo_code,omitempty"`
	TotalFare    int64        `json:"total_fare"`
}

// RateResponse echoes the tier's pricing parameters so clients can
// explain the estimate without hardcoding the rate table.
type RateResponse struct {
	BaseFare  int64   `json:"base_fare"`
	PerKm     float64 `json:"per_km"`
	PerMinute float64 `json:"per_minute"`
}

// Estimate handles GET /v1/fares/estimate
func (h *FareHandler) Estimate(c *gin.Context) {
	tier := domain.VehicleTier(c.Query("vehicle_tier"))
	distance, errD := strconv.ParseInt(c.Query("distance_meters"), 10, 64)
	duration, errT := strconv.ParseInt(c.Query("duration_seconds"), 10, 64)
	if errD != nil || errT != nil || distance < 0 || duration < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "distance_meters and duration_seconds must be non-negative integers"})
		return
	}

	rate, ok := fare.RateFor(tier)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid vehicle tier"})
		return
	}
	quote, _ := fare.Quote(tier, distance, duration)

	resp := EstimateResponse{
		VehicleTier:  string(tier),
		Rate:         RateResponse{BaseFare: rate.Base, PerKm: rate.PerKm, PerMinute: rate.PerMinute},
		BaseFare:     quote.Base,
		DistanceFare: quote.DistanceFare,
		TimeFare:     quote.TimeFare,
		TotalFare:    quote.Total,
	}

	if code := c.Query("promo_code"); code != "" {
		promo, err := h.promoRepo.GetByCode(c.Request.Context(), code)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			respondError(c, err)
			return
		}
		if promo != nil {
			if discount, ok := fare.PromoDiscount(promo, quote.Total, time.Now()); ok {
				resp.Discount = discount
				resp.PromoCode = code
				resp.TotalFare = quote.Total - discount
			}
		}
	}

	respondJSON(c, http.StatusOK, resp)
}

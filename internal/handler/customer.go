package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"delivery/internal/auth"
	"delivery/internal/domain"
	"delivery/internal/repository"
)

// CustomerHandler handles HTTP requests for customer accounts.
type CustomerHandler struct {
	customerRepo repository.CustomerRepository
	tokens       *auth.TokenService
}

// NewCustomerHandler creates a new CustomerHandler.
func NewCustomerHandler(customerRepo repository.CustomerRepository, tokens *auth.TokenService) *CustomerHandler {
	return &CustomerHandler{customerRepo: customerRepo, tokens: tokens}
}

// RegisterCustomerRequest is the HTTP request body for customer registration.
type RegisterCustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// CustomerResponse is the HTTP response for customer data.
type CustomerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Token string `json:"token,omitempty"`
}

// Register handles POST /v1/customers/register
func (h *CustomerHandler) Register(c *gin.Context) {
	var req RegisterCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if req.Name == "" || req.Phone == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "name and phone are required"})
		return
	}

	// Check if customer already exists
	existing, err := h.customerRepo.GetByPhone(c.Request.Context(), req.Phone)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		respondError(c, err)
		return
	}

	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{
			"message":  "Customer already registered",
			"customer": CustomerResponse{ID: existing.ID, Name: existing.Name, Phone: existing.Phone},
		})
		return
	}

	customer := &domain.Customer{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Phone:     req.Phone,
		CreatedAt: time.Now(),
	}

	if err := h.customerRepo.Create(c.Request.Context(), customer); err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.Mint(domain.CustomerIdentity(customer.ID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CustomerResponse{
		ID:    customer.ID,
		Name:  customer.Name,
		Phone: customer.Phone,
		Token: token,
	})
}

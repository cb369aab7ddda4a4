package repository

import (
	"context"

	"delivery/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByPhone retrieves a driver by phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.Driver, error)

	// SetOnline toggles the driver's online flag. The write is a single
	// atomic UPDATE so concurrent connects/disconnects cannot interleave
	// a stale read-modify-write.
	SetOnline(ctx context.Context, id string, online bool) error

	// UpdateLocation stores the driver's last-known coordinates.
	UpdateLocation(ctx context.Context, id string, lat, lng float64) error

	// IncrementDeliveries adds one to the driver's completed-delivery
	// counter.
	IncrementDeliveries(ctx context.Context, id string) error

	// RecordRating folds a new rating into the driver's running average.
	RecordRating(ctx context.Context, id string, rating int) error
}

// CustomerRepository defines the persistence operations for customers.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Customer, error)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"

	"delivery/internal/domain"
	"delivery/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of
// repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

const driverColumns = `
	id, name, phone, vehicle_tier, vehicle_make, vehicle_plate,
	verified, active, online, last_lat, last_lng,
	rating, rating_count, total_deliveries, created_at`

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (
			id, name, phone, vehicle_tier, vehicle_make, vehicle_plate,
			verified, active, online, last_lat, last_lng,
			rating, rating_count, total_deliveries, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.q.ExecContext(ctx, query,
		driver.ID, driver.Name, driver.Phone,
		driver.VehicleTier, driver.VehicleMake, driver.VehiclePlate,
		driver.Verified, driver.Active, driver.Online,
		driver.LastLat, driver.LastLng,
		driver.Rating, driver.RatingCount, driver.TotalDeliveries,
		driver.CreatedAt,
	)
	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
	return scanDriver(row)
}

// GetByPhone retrieves a driver by phone number.
func (r *DriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE phone = $1`, phone)
	return scanDriver(row)
}

// SetOnline toggles the driver's online flag in a single UPDATE.
func (r *DriverRepository) SetOnline(ctx context.Context, id string, online bool) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE drivers SET online = $1 WHERE id = $2`, online, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// UpdateLocation stores the driver's last-known coordinates.
func (r *DriverRepository) UpdateLocation(ctx context.Context, id string, lat, lng float64) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE drivers SET last_lat = $1, last_lng = $2 WHERE id = $3`, lat, lng, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// IncrementDeliveries adds one to the completed-delivery counter. The
// arithmetic happens in the UPDATE, never in application code.
func (r *DriverRepository) IncrementDeliveries(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE drivers SET total_deliveries = total_deliveries + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// RecordRating folds a new rating into the running average atomically.
func (r *DriverRepository) RecordRating(ctx context.Context, id string, rating int) error {
	query := `
		UPDATE drivers
		SET rating = (rating * rating_count + $1) / (rating_count + 1),
		    rating_count = rating_count + 1
		WHERE id = $2
	`
	result, err := r.q.ExecContext(ctx, query, float64(rating), id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var driver domain.Driver
	err := row.Scan(
		&driver.ID, &driver.Name, &driver.Phone,
		&driver.VehicleTier, &driver.VehicleMake, &driver.VehiclePlate,
		&driver.Verified, &driver.Active, &driver.Online,
		&driver.LastLat, &driver.LastLng,
		&driver.Rating, &driver.RatingCount, &driver.TotalDeliveries,
		&driver.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &driver, nil
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

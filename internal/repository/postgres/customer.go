package postgres

import (
	"context"
	"database/sql"
	"errors"

	"delivery/internal/domain"
	"delivery/internal/repository"
)

// CustomerRepository is a PostgreSQL implementation of
// repository.CustomerRepository.
type CustomerRepository struct {
	q Querier
}

// NewCustomerRepository creates a new PostgreSQL customer repository.
func NewCustomerRepository(db *sql.DB) *CustomerRepository {
	return &CustomerRepository{q: db}
}

// Create adds a new customer.
func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	query := `INSERT INTO customers (id, name, phone, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.q.ExecContext(ctx, query,
		customer.ID, customer.Name, customer.Phone, customer.CreatedAt)
	return err
}

// GetByID retrieves a customer by ID.
func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	return r.get(ctx, `SELECT id, name, phone, created_at FROM customers WHERE id = $1`, id)
}

// GetByPhone retrieves a customer by phone number.
func (r *CustomerRepository) GetByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	return r.get(ctx, `SELECT id, name, phone, created_at FROM customers WHERE phone = $1`, phone)
}

func (r *CustomerRepository) get(ctx context.Context, query, arg string) (*domain.Customer, error) {
	var c domain.Customer
	err := r.q.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

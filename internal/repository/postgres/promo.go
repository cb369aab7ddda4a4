package postgres

import (
	"context"
	"database/sql"
	"errors"

	"delivery/internal/domain"
	"delivery/internal/repository"
)

// PromoRepository is a PostgreSQL implementation of
// repository.PromoRepository.
type PromoRepository struct {
	q Querier
}

// NewPromoRepository creates a new PostgreSQL promo repository.
func NewPromoRepository(db *sql.DB) *PromoRepository {
	return &PromoRepository{q: db}
}

// GetByCode retrieves a promo code.
func (r *PromoRepository) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	query := `
		SELECT code, type, value, max_discount, min_order,
		       usage_limit, used_count, active, valid_from, valid_until
		FROM promo_codes WHERE code = $1
	`
	var p domain.PromoCode
	err := r.q.QueryRowContext(ctx, query, code).Scan(
		&p.Code, &p.Type, &p.Value, &p.MaxDiscount, &p.MinOrder,
		&p.UsageLimit, &p.UsedCount, &p.Active, &p.ValidFrom, &p.ValidUntil,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// IncrementUsage adds one to the usage counter, guarded on the cap
// inside the UPDATE so concurrent order creations cannot overshoot it.
func (r *PromoRepository) IncrementUsage(ctx context.Context, code string) error {
	query := `
		UPDATE promo_codes
		SET used_count = used_count + 1
		WHERE code = $1 AND active
		  AND (usage_limit = 0 OR used_count < usage_limit)
	`
	result, err := r.q.ExecContext(ctx, query, code)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		var exists bool
		if err := r.q.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM promo_codes WHERE code = $1)`, code).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

// ReleaseUsage gives a consumed slot back. The floor guard keeps a
// double release from driving the counter negative.
func (r *PromoRepository) ReleaseUsage(ctx context.Context, code string) error {
	query := `
		UPDATE promo_codes
		SET used_count = used_count - 1
		WHERE code = $1 AND used_count > 0
	`
	result, err := r.q.ExecContext(ctx, query, code)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"delivery/internal/domain"
	"delivery/internal/repository"
)

// OrderRepository is a PostgreSQL implementation of
// repository.OrderRepository. The claim and transition operations are
// conditional UPDATEs: the lifecycle guard is evaluated inside the
// statement, so concurrent writers serialize at the database row.
type OrderRepository struct {
	db *sql.DB
	q  Querier
}

// NewOrderRepository creates a new PostgreSQL order repository.
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db, q: db}
}

const orderColumns = `
	id, customer_id, driver_id,
	pickup_lat, pickup_lng, pickup_address, pickup_contact,
	drop_lat, drop_lng, drop_address, drop_contact,
	stops, vehicle_tier,
	distance_meters, duration_seconds,
	base_fare, distance_fare, time_fare, discount, promo_code, total_fare,
	payment_method, payment_status,
	status, cancel_reason,
	created_at, accepted_at, picked_up_at, delivered_at, cancelled_at`

// Create persists a new order and its creation history entry in one
// transaction.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stops, err := json.Marshal(order.Stops)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO orders (
			id, customer_id, driver_id,
			pickup_lat, pickup_lng, pickup_address, pickup_contact,
			drop_lat, drop_lng, drop_address, drop_contact,
			stops, vehicle_tier,
			distance_meters, duration_seconds,
			base_fare, distance_fare, time_fare, discount, promo_code, total_fare,
			payment_method, payment_status,
			status, cancel_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
	`

	_, err = tx.ExecContext(ctx, query,
		order.ID, order.CustomerID, nullString(order.DriverID),
		order.Pickup.Lat, order.Pickup.Lng, order.Pickup.Address, order.Pickup.Contact,
		order.Drop.Lat, order.Drop.Lng, order.Drop.Address, order.Drop.Contact,
		stops, order.VehicleTier,
		order.DistanceMeters, order.DurationSeconds,
		order.BaseFare, order.DistanceFare, order.TimeFare, order.Discount,
		nullString(order.PromoCode), order.TotalFare,
		order.PaymentMethod, order.PaymentStatus,
		order.Status, nullString(order.CancelReason), order.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err = appendHistory(ctx, tx, domain.StatusHistoryEntry{
		OrderID:    order.ID,
		Status:     order.Status,
		RecordedAt: order.CreatedAt,
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves an order by ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetByCustomer retrieves a customer's orders, newest first.
func (r *OrderRepository) GetByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC LIMIT 100`,
		customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// ClaimPending atomically assigns a driver to a still-pending order.
// The status guard lives inside the UPDATE, so of N concurrent claims
// exactly one matches the row.
func (r *OrderRepository) ClaimPending(ctx context.Context, orderID, driverID string, at time.Time) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		UPDATE orders
		SET status = $1, driver_id = $2, accepted_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := tx.ExecContext(ctx, query,
		domain.OrderStatusDriverAssigned, driverID, at,
		orderID, domain.OrderStatusPending,
	)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		err = classifyMiss(ctx, tx, orderID)
		return nil, err
	}

	if err = appendHistory(ctx, tx, domain.StatusHistoryEntry{
		OrderID:    orderID,
		Status:     domain.OrderStatusDriverAssigned,
		RecordedAt: at,
	}); err != nil {
		return nil, err
	}

	order, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

// TransitionStatus applies a driver-pushed status transition, guarded on
// both the expected current status and the assigned driver.
func (r *OrderRepository) TransitionStatus(ctx context.Context, orderID, driverID string, from domain.OrderStatus, upd repository.TransitionUpdate) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		UPDATE orders
		SET status = $1,
		    picked_up_at = CASE WHEN $2 THEN $3 ELSE picked_up_at END,
		    delivered_at = CASE WHEN $4 THEN $3 ELSE delivered_at END
		WHERE id = $5 AND driver_id = $6 AND status = $7
	`
	result, err := tx.ExecContext(ctx, query,
		upd.To, upd.SetPickedUp, upd.At, upd.SetDelivered,
		orderID, driverID, from,
	)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		err = classifyMiss(ctx, tx, orderID)
		return nil, err
	}

	if err = appendHistory(ctx, tx, domain.StatusHistoryEntry{
		OrderID:    orderID,
		Status:     upd.To,
		Lat:        upd.Lat,
		Lng:        upd.Lng,
		Note:       upd.Note,
		RecordedAt: upd.At,
	}); err != nil {
		return nil, err
	}

	order, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

// Cancel transitions the order to cancelled while cancellation is still
// permitted by the lifecycle table, unassigning any driver: a driver ID
// is only held by orders between assignment and delivery.
func (r *OrderRepository) Cancel(ctx context.Context, orderID, reason string, at time.Time) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		UPDATE orders
		SET status = $1, cancelled_at = $2, cancel_reason = $3, driver_id = NULL
		WHERE id = $4 AND status = ANY($5)
	`
	cancellable := []string{
		string(domain.OrderStatusPending),
		string(domain.OrderStatusDriverAssigned),
		string(domain.OrderStatusDriverArrived),
		string(domain.OrderStatusPickupComplete),
	}
	result, err := tx.ExecContext(ctx, query,
		domain.OrderStatusCancelled, at, reason, orderID, pq.Array(cancellable))
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		err = classifyMiss(ctx, tx, orderID)
		return nil, err
	}

	if err = appendHistory(ctx, tx, domain.StatusHistoryEntry{
		OrderID:    orderID,
		Status:     domain.OrderStatusCancelled,
		Note:       reason,
		RecordedAt: at,
	}); err != nil {
		return nil, err
	}

	order, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdatePaymentStatus sets the payment state of an order.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, orderID string, status domain.PaymentStatus) error {
	result, err := r.q.ExecContext(ctx,
		`UPDATE orders SET payment_status = $1 WHERE id = $2`, status, orderID)
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

// History returns the order's status-history log, oldest first.
func (r *OrderRepository) History(ctx context.Context, orderID string) ([]domain.StatusHistoryEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT order_id, status, lat, lng, note, recorded_at
		FROM order_status_history WHERE order_id = $1 ORDER BY recorded_at ASC, seq ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.StatusHistoryEntry
	for rows.Next() {
		var e domain.StatusHistoryEntry
		var note sql.NullString
		if err := rows.Scan(&e.OrderID, &e.Status, &e.Lat, &e.Lng, &note, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Note = note.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// appendHistory inserts one audit-log row. The table has no UPDATE or
// DELETE path anywhere in the codebase.
func appendHistory(ctx context.Context, q Querier, e domain.StatusHistoryEntry) error {
	var note sql.NullString
	if e.Note != "" {
		note = sql.NullString{String: e.Note, Valid: true}
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, status, lat, lng, note, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.OrderID, e.Status, e.Lat, e.Lng, note, e.RecordedAt)
	return err
}

// classifyMiss distinguishes a missing order from a guard failure after
// a conditional update matched no row.
func classifyMiss(ctx context.Context, q Querier, orderID string) error {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var order domain.Order
	var driverID, promoCode, cancelReason sql.NullString
	var stops []byte
	var acceptedAt, pickedUpAt, deliveredAt, cancelledAt sql.NullTime

	err := row.Scan(
		&order.ID, &order.CustomerID, &driverID,
		&order.Pickup.Lat, &order.Pickup.Lng, &order.Pickup.Address, &order.Pickup.Contact,
		&order.Drop.Lat, &order.Drop.Lng, &order.Drop.Address, &order.Drop.Contact,
		&stops, &order.VehicleTier,
		&order.DistanceMeters, &order.DurationSeconds,
		&order.BaseFare, &order.DistanceFare, &order.TimeFare, &order.Discount,
		&promoCode, &order.TotalFare,
		&order.PaymentMethod, &order.PaymentStatus,
		&order.Status, &cancelReason,
		&order.CreatedAt, &acceptedAt, &pickedUpAt, &deliveredAt, &cancelledAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	order.DriverID = driverID.String
	order.PromoCode = promoCode.String
	order.CancelReason = cancelReason.String
	if len(stops) > 0 {
		if err := json.Unmarshal(stops, &order.Stops); err != nil {
			return nil, err
		}
	}
	if acceptedAt.Valid {
		order.AcceptedAt = acceptedAt.Time
	}
	if pickedUpAt.Valid {
		order.PickedUpAt = pickedUpAt.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = deliveredAt.Time
	}
	if cancelledAt.Valid {
		order.CancelledAt = cancelledAt.Time
	}

	return &order, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

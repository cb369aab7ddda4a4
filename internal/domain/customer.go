package domain

import "time"

// Customer represents an account that requests deliveries.
type Customer struct {
	ID        string
	Name      string
	Phone     string
	CreatedAt time.Time
}

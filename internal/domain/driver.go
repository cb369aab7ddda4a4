package domain

import "time"

// VehicleTier represents the delivery vehicle class. It determines fare
// rates and which orders a driver is eligible to claim.
type VehicleTier string

const (
	VehicleTierBike  VehicleTier = "BIKE"
	VehicleTierCar   VehicleTier = "CAR"
	VehicleTierVan   VehicleTier = "VAN"
	VehicleTierTruck VehicleTier = "TRUCK"
)

// ValidVehicleTier reports whether the tier is a known vehicle class.
func ValidVehicleTier(t VehicleTier) bool {
	switch t {
	case VehicleTierBike, VehicleTierCar, VehicleTierVan, VehicleTierTruck:
		return true
	}
	return false
}

// Driver represents a delivery agent.
type Driver struct {
	ID           string
	Name         string
	Phone        string
	VehicleTier  VehicleTier
	VehicleMake  string
	VehiclePlate string

	Verified bool
	Active   bool
	Online   bool // runtime presence signal, independent of Active

	LastLat float64
	LastLng float64

	Rating          float64 // running average over rated deliveries
	RatingCount     int64
	TotalDeliveries int64

	CreatedAt time.Time
}

// Eligible reports whether the driver may claim an order of the given
// tier. Online is required: the hub forces the flag false on every
// disconnect path, so it tracks real presence.
func (d *Driver) Eligible(tier VehicleTier) bool {
	return d.Active && d.Online && d.VehicleTier == tier
}

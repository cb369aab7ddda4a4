package domain

// Role identifies what kind of actor is behind a call.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleCustomer  Role = "customer"
	RoleDriver    Role = "driver"
)

// Identity is the actor behind a core call. Acting without identity is
// a visible state (Anonymous), not a caught exception: every privileged
// operation checks the role and subject explicitly.
type Identity struct {
	Role    Role
	Subject string // customer or driver ID; empty for Anonymous
}

// Anonymous is the identity of an unauthenticated connection.
func Anonymous() Identity {
	return Identity{Role: RoleAnonymous}
}

// CustomerIdentity returns the identity of a customer actor.
func CustomerIdentity(id string) Identity {
	return Identity{Role: RoleCustomer, Subject: id}
}

// DriverIdentity returns the identity of a driver actor.
func DriverIdentity(id string) Identity {
	return Identity{Role: RoleDriver, Subject: id}
}

// IsCustomer reports whether the identity is the given customer.
func (i Identity) IsCustomer(customerID string) bool {
	return i.Role == RoleCustomer && i.Subject == customerID
}

// IsDriver reports whether the identity is the given driver.
func (i Identity) IsDriver(driverID string) bool {
	return i.Role == RoleDriver && i.Subject == driverID
}

// Authenticated reports whether the identity carries a verified subject.
func (i Identity) Authenticated() bool {
	return i.Role != RoleAnonymous && i.Subject != ""
}

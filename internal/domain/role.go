package domain

import "slices"

// Role constants define the allowed user roles.
const (
	RoleUser            = "user"
	RoleAdmin           = "admin"
	RoleRestaurantOwner = "restaurant_owner"
	RoleDeliveryDriver  = "delivery_driver"
)

// DefaultRole is assigned to self-registered accounts.
const DefaultRole = RoleUser

// ValidRoles returns the set of valid user roles.
func ValidRoles() []string {
	return []string{RoleUser, RoleAdmin, RoleRestaurantOwner, RoleDeliveryDriver}
}

// IsValidRole checks whether the given role string is a valid user role.
func IsValidRole(role string) bool {
	return slices.Contains(ValidRoles(), role)
}

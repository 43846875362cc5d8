package domain

// Role distinguishes the two sides of an order: the customer who placed it
// and the store preparing it. It selects which list endpoint a fetch hits.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStore    Role = "store"
)

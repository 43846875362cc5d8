package repository

import "ordersync/internal/domain"

// OrderRepository is the storage contract for the dev backend.
type OrderRepository interface {
	Save(order *domain.Order) error
	FindByID(id uint64) (*domain.Order, error)
	FindAll() ([]domain.Order, error)
	FindByCustomer(customerID uint64) ([]domain.Order, error)
	FindByStore(storeID uint64) ([]domain.Order, error)
	UpdateStatus(id uint64, status domain.OrderStatus) error
}

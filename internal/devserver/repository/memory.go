package repository

import (
	"errors"
	"sort"
	"sync"

	"ordersync/internal/domain"
)

// ErrNotFound is returned when an order id does not exist in storage.
var ErrNotFound = errors.New("repository: order not found")

type memoryRepo struct {
	mu     sync.RWMutex
	nextID uint64
	orders map[uint64]*domain.Order
}

// NewMemoryRepository returns an in-memory OrderRepository. It is the
// default store for the dev server and for tests.
func NewMemoryRepository() OrderRepository {
	return &memoryRepo{nextID: 1, orders: make(map[uint64]*domain.Order)}
}

func (r *memoryRepo) Save(order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if order.ID == 0 {
		order.ID = r.nextID
		r.nextID++
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	cp := cloneOrder(order)
	r.orders[order.ID] = &cp
	return nil
}

func (r *memoryRepo) FindByID(id uint64) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneOrder(o)
	return &cp, nil
}

func (r *memoryRepo) FindAll() ([]domain.Order, error) {
	return r.list(func(*domain.Order) bool { return true })
}

func (r *memoryRepo) FindByCustomer(customerID uint64) ([]domain.Order, error) {
	return r.list(func(o *domain.Order) bool { return o.CustomerID == customerID })
}

func (r *memoryRepo) FindByStore(storeID uint64) ([]domain.Order, error) {
	return r.list(func(o *domain.Order) bool { return o.StoreID == storeID })
}

func (r *memoryRepo) UpdateStatus(id uint64, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

func (r *memoryRepo) list(keep func(*domain.Order) bool) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func cloneOrder(o *domain.Order) domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return cp
}

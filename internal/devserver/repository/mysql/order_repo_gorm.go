package mysql

import (
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"ordersync/internal/devserver/repository"
	"ordersync/internal/domain"
)

type orderRepo struct {
	db  *gorm.DB
	log *slog.Logger
}

func NewOrderRepository(db *gorm.DB, log *slog.Logger) repository.OrderRepository {
	if log == nil {
		log = slog.Default()
	}
	return &orderRepo{db: db, log: log}
}

func (r *orderRepo) Save(order *domain.Order) error {
	if err := r.db.Save(order).Error; err != nil {
		r.log.Error("order save failed", "error", err)
		return err
	}
	if order.ID == 0 {
		return errors.New("failed to assign order ID")
	}
	return nil
}

func (r *orderRepo) FindByID(id uint64) (*domain.Order, error) {
	var o domain.Order
	if err := r.db.Preload("Items").First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		r.log.Error("order lookup failed", "order_id", id, "error", err)
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) FindAll() ([]domain.Order, error) {
	return r.find(r.db)
}

func (r *orderRepo) FindByCustomer(customerID uint64) ([]domain.Order, error) {
	return r.find(r.db.Where("customer_id = ?", customerID))
}

func (r *orderRepo) FindByStore(storeID uint64) ([]domain.Order, error) {
	return r.find(r.db.Where("store_id = ?", storeID))
}

func (r *orderRepo) UpdateStatus(id uint64, status domain.OrderStatus) error {
	res := r.db.Model(&domain.Order{}).Where("order_id = ?", id).Update("order_status", status)
	if res.Error != nil {
		r.log.Error("status update failed", "order_id", id, "error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *orderRepo) find(tx *gorm.DB) ([]domain.Order, error) {
	var out []domain.Order
	if err := tx.Preload("Items").Order("order_date DESC").Find(&out).Error; err != nil {
		r.log.Error("order list failed", "error", err)
		return nil, err
	}
	return out, nil
}

package domain

import (
	"errors"
	"time"
)

// Order is the central entity: one customer purchase from one store. Field
// names follow the wire format of the ordering backend. The gorm tags are
// used by the dev backend simulator only.
type Order struct {
	ID         uint64      `json:"order_id" gorm:"column:order_id;primaryKey;autoIncrement"`
	CustomerID uint64      `json:"customer_id" gorm:"not null;index"`
	StoreID    uint64      `json:"store_id" gorm:"not null;index"`
	TotalPrice int64       `json:"total_price" gorm:"not null"`
	PaymentID  string      `json:"payment_id,omitempty"`
	Status     OrderStatus `json:"order_status" gorm:"column:order_status;type:varchar(16);default:'PENDING'"`
	// OTP is the one-time handover code. It is only present while the order
	// is non-terminal; the backend strips it from responses after that.
	OTP       string      `json:"order_otp,omitempty"`
	CreatedAt time.Time   `json:"order_date" gorm:"column:order_date;autoCreateTime"`
	Items     []OrderItem `json:"items" gorm:"foreignKey:OrderID"`
}

type OrderItem struct {
	ID         uint64 `json:"item_id,omitempty" gorm:"column:item_id;primaryKey;autoIncrement"`
	OrderID    uint64 `json:"-" gorm:"index"`
	MenuItemID uint64 `json:"menu_item_id,omitempty"`
	Name       string `json:"item_name,omitempty" gorm:"column:item_name"`
	Quantity   int64  `json:"quantity"`
	Price      int64  `json:"price"`
}

var (
	ErrNoItems       = errors.New("order has no items")
	ErrBadQuantity   = errors.New("item quantity must be a positive integer")
	ErrTotalMismatch = errors.New("total price does not match sum of items")
	ErrUnknownStatus = errors.New("unknown order status")
)

// ItemsTotal is the sum of quantity times unit price over all line items.
func (o *Order) ItemsTotal() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.Quantity * it.Price
	}
	return total
}

// Validate checks the creation-time invariants: at least one item, positive
// quantities, and a total equal to the item sum. The total never changes
// after creation, so this only has to hold once.
func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrNoItems
	}
	for _, it := range o.Items {
		if it.Quantity < 1 {
			return ErrBadQuantity
		}
	}
	if o.TotalPrice != o.ItemsTotal() {
		return ErrTotalMismatch
	}
	if ParseStatus(string(o.Status)) == StatusUnknown {
		return ErrUnknownStatus
	}
	return nil
}

// Terminal reports whether the order has reached a status with no legal
// moves out of it.
func (o *Order) Terminal() bool {
	return o.Status.IsTerminal()
}

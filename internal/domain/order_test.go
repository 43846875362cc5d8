package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderValidate(t *testing.T) {
	tests := []struct {
		name        string
		order       Order
		expectedErr error
	}{
		{
			name: "valid order",
			order: Order{
				TotalPrice: 350,
				Status:     StatusPending,
				Items: []OrderItem{
					{Name: "Masala Dosa", Quantity: 2, Price: 120},
					{Name: "Filter Coffee", Quantity: 1, Price: 110},
				},
			},
		},
		{
			name:        "no items",
			order:       Order{TotalPrice: 0, Status: StatusPending},
			expectedErr: ErrNoItems,
		},
		{
			name: "zero quantity",
			order: Order{
				TotalPrice: 120,
				Status:     StatusPending,
				Items:      []OrderItem{{Name: "Masala Dosa", Quantity: 0, Price: 120}},
			},
			expectedErr: ErrBadQuantity,
		},
		{
			name: "total mismatch",
			order: Order{
				TotalPrice: 100,
				Status:     StatusPending,
				Items:      []OrderItem{{Name: "Masala Dosa", Quantity: 1, Price: 120}},
			},
			expectedErr: ErrTotalMismatch,
		},
		{
			name: "unknown status",
			order: Order{
				TotalPrice: 120,
				Status:     OrderStatus("SHIPPED"),
				Items:      []OrderItem{{Name: "Masala Dosa", Quantity: 1, Price: 120}},
			},
			expectedErr: ErrUnknownStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Validate()
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderItemsTotal(t *testing.T) {
	o := Order{
		CreatedAt: time.Now(),
		Items: []OrderItem{
			{Quantity: 3, Price: 50},
			{Quantity: 2, Price: 75},
		},
	}
	assert.Equal(t, int64(300), o.ItemsTotal())
}

func TestOrderTerminal(t *testing.T) {
	assert.False(t, (&Order{Status: StatusReady}).Terminal())
	assert.True(t, (&Order{Status: StatusCancelled}).Terminal())
	assert.True(t, (&Order{Status: StatusCompleted}).Terminal())
}

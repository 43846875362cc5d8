package services

import (
	"context"
	"errors"
	"log/slog"

	"ordersync/internal/api"
	"ordersync/internal/domain"
	"ordersync/pkg/logger"
)

var ErrOrderNotFound = errors.New("order not found")

// HTTPDoer is the slice of the API client the order service uses.
type HTTPDoer interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	Patch(ctx context.Context, path string, body, out any) error
}

// OrderService wraps the backend's order endpoints in typed calls. Statuses
// are normalized at this boundary so nothing above it ever compares raw
// casing.
type OrderService struct {
	api HTTPDoer
	log *slog.Logger
}

func NewOrderService(a HTTPDoer, opts ...Option) *OrderService {
	s := &OrderService{api: a, log: logger.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type Option func(*OrderService)

func WithLogger(l *slog.Logger) Option {
	return func(s *OrderService) { s.log = l }
}

type ordersResponse struct {
	Success bool           `json:"success"`
	Orders  []domain.Order `json:"orders"`
}

type orderResponse struct {
	Success bool         `json:"success"`
	Order   domain.Order `json:"order"`
}

// Orders fetches the full order list for the given role.
func (s *OrderService) Orders(ctx context.Context, role domain.Role) ([]domain.Order, error) {
	endpoint := api.EndpointUserOrders
	if role == domain.RoleStore {
		endpoint = api.EndpointStoreOrders
	}

	var resp ordersResponse
	if err := s.api.Get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Orders {
		s.normalize(&resp.Orders[i])
	}
	return resp.Orders, nil
}

// OrderDetail fetches one order.
func (s *OrderService) OrderDetail(ctx context.Context, orderID uint64) (*domain.Order, error) {
	var resp orderResponse
	if err := s.api.Get(ctx, api.EndpointOrderDetail(orderID), &resp); err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	s.normalize(&resp.Order)
	return &resp.Order, nil
}

type CreateOrderItem struct {
	MenuItemID uint64 `json:"menu_item_id"`
	Quantity   int64  `json:"quantity"`
}

type CreateOrderRequest struct {
	StoreID   uint64            `json:"store_id"`
	PaymentID string            `json:"payment_id"`
	Items     []CreateOrderItem `json:"items"`
}

var ErrEmptyOrder = errors.New("order must contain at least one item")

// CreateOrder places a new order. The response carries the generated
// one-time handover code.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return nil, domain.ErrBadQuantity
		}
	}

	var resp orderResponse
	if err := s.api.Post(ctx, api.EndpointCreateOrder, req, &resp); err != nil {
		return nil, err
	}
	s.normalize(&resp.Order)
	return &resp.Order, nil
}

// UpdateStatus routes an action to its dedicated endpoint and returns the
// status the order holds on success. VERIFY is the only call with a payload:
// the one-time code.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint64, action domain.Action, otp string) (domain.OrderStatus, error) {
	empty := struct{}{}
	var err error
	switch action {
	case domain.ActionConfirm:
		err = s.api.Patch(ctx, api.EndpointOrderConfirm(orderID), empty, nil)
	case domain.ActionPrepare:
		err = s.api.Patch(ctx, api.EndpointOrderPrepare(orderID), empty, nil)
	case domain.ActionReady:
		err = s.api.Patch(ctx, api.EndpointOrderReady(orderID), empty, nil)
	case domain.ActionVerify:
		body := struct {
			OrderOTP string `json:"order_otp"`
		}{OrderOTP: otp}
		err = s.api.Post(ctx, api.EndpointOrderVerify(orderID), body, nil)
	case domain.ActionComplete:
		err = s.api.Patch(ctx, api.EndpointOrderComplete(orderID), empty, nil)
	case domain.ActionCancel:
		err = s.api.Patch(ctx, api.EndpointOrderCancel(orderID), empty, nil)
	default:
		return domain.StatusUnknown, errors.New("unsupported status update: " + string(action))
	}
	if err != nil {
		return domain.StatusUnknown, err
	}
	return action.TargetStatus(), nil
}

func (s *OrderService) normalize(o *domain.Order) {
	parsed := domain.ParseStatus(string(o.Status))
	if parsed == domain.StatusUnknown {
		s.log.Warn("order carries unrecognized status", "order_id", o.ID, "status", o.Status)
	}
	o.Status = parsed
}

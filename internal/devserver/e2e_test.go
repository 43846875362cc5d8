package devserver_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersync/internal/api"
	"ordersync/internal/cache"
	"ordersync/internal/devserver"
	"ordersync/internal/devserver/repository"
	"ordersync/internal/dispatch"
	"ordersync/internal/domain"
	"ordersync/internal/services"
	"ordersync/internal/stream"
)

// The full stack against the dev backend: HTTP client, typed service, live
// watch streams, store-side dispatcher, and both caches, with nothing faked
// below the TCP socket.
func TestEndToEnd_OrderJourney(t *testing.T) {
	gin.SetMode(gin.TestMode)
	backend := devserver.New(
		repository.NewMemoryRepository(),
		devserver.WithOTP(func() string { return "4821" }),
		devserver.WithHeartbeat(25*time.Millisecond),
	)
	srv := httptest.NewServer(backend.Router())
	defer srv.Close()

	ctx := context.Background()
	watchOpts := stream.Options{ReconnectDelay: 50 * time.Millisecond}

	// Customer places an order and starts watching it.
	customer := services.NewOrderService(api.NewClient(srv.URL, 2*time.Second))
	order, err := customer.CreateOrder(ctx, services.CreateOrderRequest{
		StoreID: 1,
		Items:   []services.CreateOrderItem{{MenuItemID: 1, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, order.Status)
	require.Equal(t, "4821", order.OTP)

	sub := stream.WatchOrder(api.NewClient(srv.URL, 2*time.Second), order.ID, order.Status, watchOpts)
	defer sub.Close()

	// Store seeds its cache from the list endpoint and drives the order
	// through the kitchen with the dispatcher.
	storeAPI := services.NewOrderService(api.NewClient(srv.URL, 2*time.Second))
	storeCache := cache.New()
	seed, err := storeAPI.Orders(ctx, domain.RoleStore)
	require.NoError(t, err)
	storeCache.ReplaceAll(seed)
	require.Equal(t, 1, storeCache.Len())

	terminal := make(chan uint64, 1)
	d := dispatch.New(storeAPI, storeCache, domain.RoleStore,
		dispatch.WithTerminalHook(func(orderID uint64) { terminal <- orderID }))

	for _, action := range []domain.Action{domain.ActionConfirm, domain.ActionPrepare, domain.ActionReady} {
		require.NoError(t, d.Dispatch(ctx, order.ID, action, ""))
		d.Flush()
	}

	// The customer's subscription converges on the pushed statuses.
	require.Eventually(t, func() bool {
		return sub.Status() == domain.StatusReady
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, sub.IsConnected())

	// A wrong code is rejected: the order stays READY and the stream stays
	// open.
	err = d.Dispatch(ctx, order.ID, domain.ActionVerify, "0000")
	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "Invalid OTP")

	got, ok := storeCache.Get(order.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusReady, got.Status)
	select {
	case <-sub.Done():
		t.Fatal("subscription closed after a failed handover")
	default:
	}

	// The right code completes the handover.
	require.NoError(t, d.Dispatch(ctx, order.ID, domain.ActionVerify, "4821"))
	d.Flush()

	require.Eventually(t, func() bool {
		return sub.Status() == domain.StatusDelivered
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case id := <-terminal:
		assert.Equal(t, order.ID, id)
	case <-time.After(time.Second):
		t.Fatal("terminal hook never fired")
	}

	// Terminal status ends the subscription for good.
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not close on terminal status")
	}

	got, ok = storeCache.Get(order.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusDelivered, got.Status)
	assert.Empty(t, got.OTP)

	// Nothing moves a delivered order, and the backend agrees.
	err = d.Dispatch(ctx, order.ID, domain.ActionCancel, "")
	assert.ErrorIs(t, err, dispatch.ErrIllegalTransition)
}

func TestEndToEnd_StoreWatchSeesNewOrders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	backend := devserver.New(
		repository.NewMemoryRepository(),
		devserver.WithHeartbeat(25*time.Millisecond),
	)
	srv := httptest.NewServer(backend.Router())
	defer srv.Close()

	storeCache := cache.New()
	sub := stream.WatchStore(api.NewClient(srv.URL, 2*time.Second), stream.StoreHooks{
		OnNewOrder: func(o domain.Order) { storeCache.MergeNewOrder(o) },
		OnOrderUpdate: func(orderID uint64, status domain.OrderStatus) {
			storeCache.PatchStatus(orderID, status)
		},
	}, stream.Options{ReconnectDelay: 50 * time.Millisecond})
	defer sub.Close()

	require.Eventually(t, sub.IsConnected, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	customer := services.NewOrderService(api.NewClient(srv.URL, 2*time.Second))
	order, err := customer.CreateOrder(ctx, services.CreateOrderRequest{
		StoreID: 1,
		Items:   []services.CreateOrderItem{{MenuItemID: 2, Quantity: 1}},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, ok := storeCache.Get(order.ID)
		return ok && got.Status == domain.StatusPending
	}, 2*time.Second, 10*time.Millisecond)

	_, err = customer.UpdateStatus(ctx, order.ID, domain.ActionConfirm, "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, ok := storeCache.Get(order.ID)
		return ok && got.Status == domain.StatusConfirmed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, storeCache.Kitchen(), 1)
}

package api

import "fmt"

// Endpoint paths of the ordering backend. Watch endpoints are long-lived SSE
// streams; everything else is plain request/response.
const (
	EndpointCreateOrder = "/orders"
	EndpointUserOrders  = "/users/orders"
	EndpointStoreOrders = "/stores/orders"
	EndpointStoreWatch  = "/stores/orders/watch"
	EndpointRefresh     = "/users/refresh"
)

func EndpointOrderDetail(orderID uint64) string {
	return fmt.Sprintf("/orders/%d", orderID)
}

func EndpointOrderWatch(orderID uint64) string {
	return fmt.Sprintf("/orders/%d/watch", orderID)
}

func EndpointOrderConfirm(orderID uint64) string {
	return fmt.Sprintf("/orders/%d/confirm", orderID)
}

func EndpointOrderPrepare(orderID uint64) string {
	return fmt.Sprintf("/orders/%d/prepare", orderID)
}

func EndpointOrderReady(orderID uint64) string {
	return fmt.Sprintf("/orders/%d/ready", orderID)
}

func EndpointOrderVerify(orderID uint64) string {
	return fmt.Sprintf("/orders/%d/verify", orderID)
}

func EndpointOrderComplete(orderID uint64) string {
	return fmt.Sprintf("/orders/%d/complete", orderID)
}

func EndpointOrderCancel(orderID uint64) string {
	return fmt.Sprintf("/orders/%d/cancel", orderID)
}

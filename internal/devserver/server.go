package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"ordersync/internal/devserver/infra/rabbitmq"
	"ordersync/internal/devserver/repository"
	"ordersync/internal/domain"
	"ordersync/pkg/logger"
)

const storeOrdersKey = "devserver:orders:store"

// Server is a self-contained stand-in for the ordering backend. It speaks
// the same envelope, endpoints, and watch streams as production, so the
// client stack can be exercised end to end without real infrastructure.
type Server struct {
	repo      repository.OrderRepository
	hub       *hub
	log       *slog.Logger
	rdb       *redis.Client
	pub       rabbitmq.PublisherInterface
	heartbeat time.Duration
	menu      map[uint64]menuItem
	otp       func() string
	now       func() time.Time
}

type menuItem struct {
	Name  string
	Price int64
}

// defaultMenu stands in for the menu service the real backend consults when
// pricing an order.
var defaultMenu = map[uint64]menuItem{
	1: {Name: "Nasi Goreng", Price: 25000},
	2: {Name: "Mie Goreng", Price: 22000},
	3: {Name: "Ayam Bakar", Price: 30000},
	4: {Name: "Es Teh", Price: 8000},
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithRedis enables list caching on the store order endpoint.
func WithRedis(rdb *redis.Client) Option {
	return func(s *Server) { s.rdb = rdb }
}

// WithPublisher mirrors lifecycle events onto a message exchange.
func WithPublisher(pub rabbitmq.PublisherInterface) Option {
	return func(s *Server) { s.pub = pub }
}

func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) { s.heartbeat = d }
}

// WithOTP overrides code generation, used by tests that need fixed codes.
func WithOTP(fn func() string) Option {
	return func(s *Server) { s.otp = fn }
}

func New(repo repository.OrderRepository, opts ...Option) *Server {
	s := &Server{
		repo:      repo,
		hub:       newHub(),
		log:       logger.Nop(),
		heartbeat: 15 * time.Second,
		menu:      defaultMenu,
		otp:       randomOTP,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomOTP() string {
	return fmt.Sprintf("%04d", rand.IntN(10000))
}

// Router builds the gin engine with every backend route mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/orders", s.createOrder)
	r.GET("/orders/:id", s.orderDetail)
	r.GET("/orders/:id/watch", s.watchOrder)
	r.PATCH("/orders/:id/confirm", s.transitionTo(domain.StatusConfirmed))
	r.PATCH("/orders/:id/prepare", s.transitionTo(domain.StatusPreparing))
	r.PATCH("/orders/:id/ready", s.transitionTo(domain.StatusReady))
	r.PATCH("/orders/:id/complete", s.transitionTo(domain.StatusCompleted))
	r.PATCH("/orders/:id/cancel", s.transitionTo(domain.StatusCancelled))
	r.POST("/orders/:id/verify", s.verifyOrder)
	r.GET("/users/orders", s.userOrders)
	r.GET("/stores/orders", s.storeOrders)
	r.GET("/stores/orders/watch", s.watchStore)
	r.POST("/users/refresh", s.refresh)

	return r
}

func fail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"success": false, "UImessage": msg})
}

type createOrderRequest struct {
	CustomerID uint64 `json:"customer_id"`
	StoreID    uint64 `json:"store_id"`
	PaymentID  string `json:"payment_id"`
	Items      []struct {
		MenuItemID uint64 `json:"menu_item_id"`
		Quantity   int64  `json:"quantity"`
	} `json:"items"`
}

func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid order payload")
		return
	}
	if len(req.Items) == 0 {
		fail(c, http.StatusBadRequest, "Order must contain at least one item")
		return
	}

	order := domain.Order{
		CustomerID: req.CustomerID,
		StoreID:    req.StoreID,
		PaymentID:  req.PaymentID,
		Status:     domain.StatusPending,
		OTP:        s.otp(),
		CreatedAt:  s.now(),
	}
	for _, it := range req.Items {
		if it.Quantity < 1 {
			fail(c, http.StatusBadRequest, "Item quantity must be at least 1")
			return
		}
		mi, ok := s.menu[it.MenuItemID]
		if !ok {
			fail(c, http.StatusBadRequest, fmt.Sprintf("Unknown menu item %d", it.MenuItemID))
			return
		}
		order.Items = append(order.Items, domain.OrderItem{
			MenuItemID: it.MenuItemID,
			Name:       mi.Name,
			Quantity:   it.Quantity,
			Price:      mi.Price,
		})
		order.TotalPrice += it.Quantity * mi.Price
	}
	if order.PaymentID == "" {
		order.PaymentID = fmt.Sprintf("PAY-%d", s.now().UnixMilli())
	}

	if err := s.repo.Save(&order); err != nil {
		s.log.Error("order save failed", "error", err)
		fail(c, http.StatusInternalServerError, "Could not create order")
		return
	}
	s.invalidate(c.Request.Context())

	pushed := order
	s.broadcastNewOrder(&pushed)
	s.publish("order.created", pushed)

	s.log.Info("order created", "order_id", order.ID, "total", order.TotalPrice)
	c.JSON(http.StatusCreated, gin.H{"success": true, "order": order})
}

func (s *Server) orderDetail(c *gin.Context) {
	order, ok := s.loadOrder(c)
	if !ok {
		return
	}
	sanitize(order)
	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// transitionTo builds the handler for one of the dedicated status
// endpoints. The target status is fixed per route; legality is judged
// against the stored order.
func (s *Server) transitionTo(target domain.OrderStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, ok := s.loadOrder(c)
		if !ok {
			return
		}
		if domain.Equivalent(order.Status, target) {
			c.JSON(http.StatusOK, gin.H{"success": true, "order_status": target, "UImessage": "Order already in requested status"})
			return
		}
		if !domain.CanTransition(order.Status, target) {
			fail(c, http.StatusConflict, fmt.Sprintf("Cannot move order from %s to %s", order.Status, target))
			return
		}
		s.applyStatus(c, order, target)
	}
}

type verifyRequest struct {
	OrderOTP string `json:"order_otp"`
}

func (s *Server) verifyOrder(c *gin.Context) {
	order, ok := s.loadOrder(c)
	if !ok {
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid verification payload")
		return
	}
	if !domain.CanTransition(order.Status, domain.StatusDelivered) {
		fail(c, http.StatusConflict, fmt.Sprintf("Cannot hand over an order that is %s", order.Status))
		return
	}
	if req.OrderOTP != order.OTP {
		s.log.Warn("verification rejected", "order_id", order.ID)
		fail(c, http.StatusBadRequest, "Invalid OTP. Please try again.")
		return
	}
	s.applyStatus(c, order, domain.StatusDelivered)
}

// applyStatus persists the move, wakes every watcher, and answers the
// request.
func (s *Server) applyStatus(c *gin.Context, order *domain.Order, target domain.OrderStatus) {
	if err := s.repo.UpdateStatus(order.ID, target); err != nil {
		s.log.Error("status update failed", "order_id", order.ID, "error", err)
		fail(c, http.StatusInternalServerError, "Could not update order")
		return
	}
	s.invalidate(c.Request.Context())

	s.log.Info("order moved", "order_id", order.ID, "from", order.Status, "to", target)
	s.broadcastStatus(order.ID, target)
	s.publish("order.status", gin.H{"order_id": order.ID, "order_status": target})

	c.JSON(http.StatusOK, gin.H{"success": true, "order_status": target})
}

func (s *Server) userOrders(c *gin.Context) {
	orders, err := s.listFor(c, "customer_id", s.repo.FindByCustomer)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not load orders")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

func (s *Server) storeOrders(c *gin.Context) {
	if s.rdb != nil && c.Query("store_id") == "" {
		if raw, err := s.rdb.Get(c.Request.Context(), storeOrdersKey).Result(); err == nil {
			var cached []domain.Order
			if json.Unmarshal([]byte(raw), &cached) == nil {
				c.JSON(http.StatusOK, gin.H{"success": true, "orders": cached})
				return
			}
		}
	}

	orders, err := s.listFor(c, "store_id", s.repo.FindByStore)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not load orders")
		return
	}

	if s.rdb != nil && c.Query("store_id") == "" {
		if raw, err := json.Marshal(orders); err == nil {
			s.rdb.Set(c.Request.Context(), storeOrdersKey, raw, 10*time.Second)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

// refresh stands in for the session refresh endpoint. The dev server has no
// real auth, so it always succeeds.
func (s *Server) refresh(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) watchOrder(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid order id")
		return
	}

	// Subscribe before reading the stored status so a transition landing in
	// between still reaches this stream.
	ch := s.hub.subscribeOrder(id)
	defer s.hub.unsubscribeOrder(id, ch)

	order, ok := s.loadOrder(c)
	if !ok {
		return
	}

	s.streamSetup(c)

	// Push the stored status first so a late subscriber is never behind.
	if !s.sendFrame(c, orderFrame(order.Status)) {
		return
	}
	if order.Status.IsTerminal() {
		return
	}
	s.streamLoop(c, ch, true)
}

func (s *Server) watchStore(c *gin.Context) {
	ch := s.hub.subscribeStore()
	defer s.hub.unsubscribeStore(ch)

	s.streamSetup(c)
	s.streamLoop(c, ch, false)
}

func (s *Server) streamSetup(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	c.Writer.Flush()
}

// streamLoop pumps hub payloads and heartbeats until the client goes away.
// Per-order streams additionally stop after a terminal frame.
func (s *Server) streamLoop(c *gin.Context, ch chan string, stopOnTerminal bool) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()
	for {
		select {
		case <-clientGone:
			return
		case payload := <-ch:
			if !s.sendFrame(c, payload) {
				return
			}
			if stopOnTerminal && frameIsTerminal(payload) {
				return
			}
		case <-ticker.C:
			if _, err := c.Writer.WriteString(": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func (s *Server) sendFrame(c *gin.Context, payload string) bool {
	if err := sse.Encode(c.Writer, sse.Event{Data: payload}); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}

func (s *Server) broadcastNewOrder(order *domain.Order) {
	evt := domain.StoreEvent{Type: domain.EventNewOrder, Order: order}
	if raw, err := json.Marshal(evt); err == nil {
		s.hub.broadcastStore(string(raw))
	}
}

func (s *Server) broadcastStatus(orderID uint64, status domain.OrderStatus) {
	s.hub.broadcastOrder(orderID, orderFrame(status))

	evt := domain.StoreEvent{Type: domain.EventOrderUpdate, OrderID: orderID, OrderStatus: string(status)}
	if raw, err := json.Marshal(evt); err == nil {
		s.hub.broadcastStore(string(raw))
	}
}

func orderFrame(status domain.OrderStatus) string {
	raw, _ := json.Marshal(domain.OrderEvent{Status: string(status)})
	return string(raw)
}

func frameIsTerminal(payload string) bool {
	var evt domain.OrderEvent
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		return false
	}
	return domain.ParseStatus(evt.Status).IsTerminal()
}

func (s *Server) loadOrder(c *gin.Context) (*domain.Order, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid order id")
		return nil, false
	}
	order, err := s.repo.FindByID(id)
	if err != nil {
		if err == repository.ErrNotFound {
			fail(c, http.StatusNotFound, "Order not found")
		} else {
			s.log.Error("order lookup failed", "order_id", id, "error", err)
			fail(c, http.StatusInternalServerError, "Could not load order")
		}
		return nil, false
	}
	return order, true
}

func (s *Server) listFor(c *gin.Context, param string, find func(uint64) ([]domain.Order, error)) ([]domain.Order, error) {
	var (
		orders []domain.Order
		err    error
	)
	if raw := c.Query(param); raw != "" {
		var id uint64
		if id, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return []domain.Order{}, nil
		}
		orders, err = find(id)
	} else {
		orders, err = s.repo.FindAll()
	}
	if err != nil {
		return nil, err
	}
	for i := range orders {
		sanitize(&orders[i])
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

func (s *Server) invalidate(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	s.rdb.Del(ctx, storeOrdersKey)
}

func (s *Server) publish(routingKey string, data any) {
	if s.pub == nil {
		return
	}
	go func() {
		if err := s.pub.Publish(context.Background(), routingKey, data); err != nil {
			s.log.Warn("event publish failed", "routing_key", routingKey, "error", err)
		}
	}()
}

// sanitize hides the handover code once it can no longer be used.
func sanitize(o *domain.Order) {
	if o.Status.IsTerminal() {
		o.OTP = ""
	}
}

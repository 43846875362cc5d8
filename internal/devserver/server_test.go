package devserver

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersync/internal/devserver/repository"
	"ordersync/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(opts ...Option) (*Server, repository.OrderRepository) {
	repo := repository.NewMemoryRepository()
	opts = append([]Option{WithOTP(func() string { return "4821" })}, opts...)
	return New(repo, opts...), repo
}

type apiResponse struct {
	Success     bool           `json:"success"`
	UIMessage   string         `json:"UImessage"`
	Order       domain.Order   `json:"order"`
	Orders      []domain.Order `json:"orders"`
	OrderStatus string         `json:"order_status"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	return w.Code, resp
}

func createOrder(t *testing.T, r *gin.Engine) domain.Order {
	t.Helper()
	code, resp := doJSON(t, r, http.MethodPost, "/orders", gin.H{
		"customer_id": 7,
		"store_id":    1,
		"items":       []gin.H{{"menu_item_id": 1, "quantity": 2}, {"menu_item_id": 4, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, code)
	require.True(t, resp.Success)
	return resp.Order
}

func TestCreateOrder_PricesFromMenu(t *testing.T) {
	s, _ := newTestServer()
	r := s.Router()

	order := createOrder(t, r)

	assert.NotZero(t, order.ID)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, int64(2*25000+8000), order.TotalPrice)
	assert.Regexp(t, `^[0-9]{4}$`, order.OTP)
	assert.True(t, strings.HasPrefix(order.PaymentID, "PAY-"))
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Nasi Goreng", order.Items[0].Name)
}

func TestCreateOrder_Rejections(t *testing.T) {
	s, _ := newTestServer()
	r := s.Router()

	tests := []struct {
		name string
		body gin.H
		msg  string
	}{
		{name: "no items", body: gin.H{"store_id": 1, "items": []gin.H{}}, msg: "at least one item"},
		{name: "zero quantity", body: gin.H{"store_id": 1, "items": []gin.H{{"menu_item_id": 1, "quantity": 0}}}, msg: "quantity"},
		{name: "unknown menu item", body: gin.H{"store_id": 1, "items": []gin.H{{"menu_item_id": 99, "quantity": 1}}}, msg: "Unknown menu item"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := doJSON(t, r, http.MethodPost, "/orders", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.False(t, resp.Success)
			assert.Contains(t, resp.UIMessage, tt.msg)
		})
	}
}

func TestOrderDetail_NotFound(t *testing.T) {
	s, _ := newTestServer()
	r := s.Router()

	code, resp := doJSON(t, r, http.MethodGet, "/orders/42", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, resp.Success)
}

func TestTransitions_ForwardPathEnforced(t *testing.T) {
	s, _ := newTestServer()
	r := s.Router()
	order := createOrder(t, r)
	base := fmt.Sprintf("/orders/%d", order.ID)

	// Skipping a step is refused.
	code, resp := doJSON(t, r, http.MethodPatch, base+"/ready", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, resp.Success)

	for _, step := range []string{"/confirm", "/prepare", "/ready"} {
		code, resp = doJSON(t, r, http.MethodPatch, base+step, nil)
		require.Equal(t, http.StatusOK, code)
		require.True(t, resp.Success)
	}
	assert.Equal(t, string(domain.StatusReady), resp.OrderStatus)

	// Moving backwards is refused.
	code, _ = doJSON(t, r, http.MethodPatch, base+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestTransitions_SameStatusIsIdempotent(t *testing.T) {
	s, _ := newTestServer()
	r := s.Router()
	order := createOrder(t, r)
	base := fmt.Sprintf("/orders/%d", order.ID)

	code, _ := doJSON(t, r, http.MethodPatch, base+"/confirm", nil)
	require.Equal(t, http.StatusOK, code)
	code, resp := doJSON(t, r, http.MethodPatch, base+"/confirm", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
}

func TestCancel_ThenNothingElse(t *testing.T) {
	s, repo := newTestServer()
	r := s.Router()
	order := createOrder(t, r)
	base := fmt.Sprintf("/orders/%d", order.ID)

	code, _ := doJSON(t, r, http.MethodPatch, base+"/prepare", nil)
	require.Equal(t, http.StatusConflict, code)

	code, _ = doJSON(t, r, http.MethodPatch, base+"/cancel", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, r, http.MethodPatch, base+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, code)

	stored, err := repo.FindByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
}

func TestVerify_OTPGatesHandover(t *testing.T) {
	s, repo := newTestServer()
	r := s.Router()
	order := createOrder(t, r)
	base := fmt.Sprintf("/orders/%d", order.ID)

	// Handover before READY is refused regardless of the code.
	code, _ := doJSON(t, r, http.MethodPost, base+"/verify", gin.H{"order_otp": order.OTP})
	assert.Equal(t, http.StatusConflict, code)

	for _, step := range []string{"/confirm", "/prepare", "/ready"} {
		code, _ = doJSON(t, r, http.MethodPatch, base+step, nil)
		require.Equal(t, http.StatusOK, code)
	}

	code, resp := doJSON(t, r, http.MethodPost, base+"/verify", gin.H{"order_otp": "0000"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.UIMessage, "Invalid OTP")

	stored, err := repo.FindByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, stored.Status)

	code, resp = doJSON(t, r, http.MethodPost, base+"/verify", gin.H{"order_otp": order.OTP})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, string(domain.StatusDelivered), resp.OrderStatus)
}

func TestDetail_HidesOTPOnceTerminal(t *testing.T) {
	s, _ := newTestServer()
	r := s.Router()
	order := createOrder(t, r)
	base := fmt.Sprintf("/orders/%d", order.ID)

	_, resp := doJSON(t, r, http.MethodGet, base, nil)
	assert.Equal(t, order.OTP, resp.Order.OTP)

	code, _ := doJSON(t, r, http.MethodPatch, base+"/cancel", nil)
	require.Equal(t, http.StatusOK, code)

	_, resp = doJSON(t, r, http.MethodGet, base, nil)
	assert.Empty(t, resp.Order.OTP)
}

func TestStoreOrders_ListsAndFilters(t *testing.T) {
	s, _ := newTestServer()
	r := s.Router()
	createOrder(t, r)
	createOrder(t, r)

	code, resp := doJSON(t, r, http.MethodGet, "/stores/orders", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Orders, 2)

	code, resp = doJSON(t, r, http.MethodGet, "/users/orders?customer_id=7", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Orders, 2)

	code, resp = doJSON(t, r, http.MethodGet, "/users/orders?customer_id=999", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Orders)
}

func TestRefresh_AlwaysSucceeds(t *testing.T) {
	s, _ := newTestServer()
	code, resp := doJSON(t, s.Router(), http.MethodPost, "/users/refresh", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
}

// readWatchFrames collects data frames from a live watch stream until the
// stream closes or the limit is reached.
func readWatchFrames(t *testing.T, url string, limit int, out chan<- string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	go func() {
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		n := 0
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			out <- strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			n++
			if n == limit {
				return
			}
		}
	}()
}

func TestWatchOrder_PushesStatusAndClosesOnTerminal(t *testing.T) {
	s, _ := newTestServer(WithHeartbeat(50 * time.Millisecond))
	r := s.Router()
	srv := httptest.NewServer(r)
	defer srv.Close()

	order := createOrder(t, r)
	base := fmt.Sprintf("/orders/%d", order.ID)

	frames := make(chan string, 8)
	readWatchFrames(t, srv.URL+base+"/watch", 3, frames)

	// Stored status arrives first.
	assert.JSONEq(t, `{"status":"PENDING"}`, waitFrame(t, frames))

	code, _ := doJSON(t, r, http.MethodPatch, base+"/confirm", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"CONFIRMED"}`, waitFrame(t, frames))

	code, _ = doJSON(t, r, http.MethodPatch, base+"/cancel", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"CANCELLED"}`, waitFrame(t, frames))
}

func TestWatchOrder_UpdateDuringConnectNotLost(t *testing.T) {
	s, _ := newTestServer(WithHeartbeat(50 * time.Millisecond))
	r := s.Router()
	srv := httptest.NewServer(r)
	defer srv.Close()
	// The watch streams stay open past each iteration; drop them so Close
	// does not wait on them forever.
	defer srv.CloseClientConnections()

	// Race the first transition against the watch connect. Whatever the
	// interleaving, CONFIRMED must show up: either as a pushed frame or as
	// the stored status sent on connect.
	for i := 0; i < 5; i++ {
		order := createOrder(t, r)
		base := fmt.Sprintf("/orders/%d", order.ID)

		go func() {
			req, err := http.NewRequest(http.MethodPatch, srv.URL+base+"/confirm", nil)
			if err == nil {
				resp, err := http.DefaultClient.Do(req)
				if err == nil {
					resp.Body.Close()
				}
			}
		}()

		frames := make(chan string, 8)
		readWatchFrames(t, srv.URL+base+"/watch", 4, frames)

		deadline := time.After(2 * time.Second)
		seen := false
		for !seen {
			select {
			case f := <-frames:
				seen = strings.Contains(f, string(domain.StatusConfirmed))
			case <-deadline:
				t.Fatalf("run %d: CONFIRMED never reached the watch stream", i)
			}
		}
	}
}

func TestWatchStore_SeesNewOrdersAndUpdates(t *testing.T) {
	s, _ := newTestServer(WithHeartbeat(50 * time.Millisecond))
	r := s.Router()
	srv := httptest.NewServer(r)
	defer srv.Close()

	frames := make(chan string, 8)
	readWatchFrames(t, srv.URL+"/stores/orders/watch", 2, frames)
	time.Sleep(50 * time.Millisecond) // let the subscription register

	order := createOrder(t, r)

	var created domain.StoreEvent
	require.NoError(t, json.Unmarshal([]byte(waitFrame(t, frames)), &created))
	assert.Equal(t, domain.EventNewOrder, created.Type)
	require.NotNil(t, created.Order)
	assert.Equal(t, order.ID, created.Order.ID)

	code, _ := doJSON(t, r, http.MethodPatch, fmt.Sprintf("/orders/%d/confirm", order.ID), nil)
	require.Equal(t, http.StatusOK, code)

	var updated domain.StoreEvent
	require.NoError(t, json.Unmarshal([]byte(waitFrame(t, frames)), &updated))
	assert.Equal(t, domain.EventOrderUpdate, updated.Type)
	assert.Equal(t, order.ID, updated.OrderID)
	assert.Equal(t, string(domain.StatusConfirmed), updated.OrderStatus)
}

func waitFrame(t *testing.T, frames <-chan string) string {
	t.Helper()
	select {
	case f := <-frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watch frame")
		return ""
	}
}

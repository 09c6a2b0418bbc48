package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// MockOrderUseCase simula o use case para os testes de handler
type MockOrderUseCase struct {
	mock.Mock
}

func (m *MockOrderUseCase) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	args := m.Called(ctx, req)
	if order := args.Get(0); order != nil {
		return order.(*Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderUseCase) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	args := m.Called(ctx, orderID)
	if order := args.Get(0); order != nil {
		return order.(*Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderUseCase) ListOrders(ctx context.Context) ([]*Order, error) {
	args := m.Called(ctx)
	if orders := args.Get(0); orders != nil {
		return orders.([]*Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderUseCase) UpdateDeliveryAddress(ctx context.Context, orderID string, address DeliveryAddress) error {
	args := m.Called(ctx, orderID, address)
	return args.Error(0)
}

func (m *MockOrderUseCase) DeleteOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockOrderUseCase) Restock(ctx context.Context, productID string, quantity int) error {
	args := m.Called(ctx, productID, quantity)
	return args.Error(0)
}

func (m *MockOrderUseCase) CreateOrder(ctx context.Context, req SagaOrderRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockOrderUseCase) CompleteOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockOrderUseCase) CancelOrder(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockOrderUseCase) ReserveItem(ctx context.Context, req SagaReserveRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockOrderUseCase) CompensateItem(ctx context.Context, req SagaReserveRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func setupRouter(useCase OrderUseCaseInterface) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewOrderHandler(useCase, otel.Tracer("test"))

	r := gin.New()
	r.POST("/api/orders", handler.PlaceOrder)
	r.GET("/api/orders/:id", handler.GetOrder)
	r.PATCH("/api/orders/:id/address", handler.UpdateDeliveryAddress)
	r.POST("/api/inventory/reserve", handler.ReserveItem)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPlaceOrderHandlerRejectsMalformedBody(t *testing.T) {
	useCase := new(MockOrderUseCase)
	r := setupRouter(useCase)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	useCase.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestPlaceOrderHandlerAccepted(t *testing.T) {
	useCase := new(MockOrderUseCase)
	r := setupRouter(useCase)

	request := validRequest()
	order := NewOrder("order-42", request.DeliveryAddress, request.Items)
	order.Status = OrderStatusCompleted
	useCase.On("PlaceOrder", mock.Anything, mock.AnythingOfType("main.PlaceOrderRequest")).Return(order, nil)

	w := postJSON(t, r, "/api/orders", request)

	assert.Equal(t, http.StatusCreated, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "order-42", body["order_id"])
	assert.Equal(t, OrderStatusCompleted, body["status"])
}

func TestPlaceOrderHandlerMapsShortageToConflict(t *testing.T) {
	useCase := new(MockOrderUseCase)
	r := setupRouter(useCase)

	shortageErr := &ShortageError{Shortages: []Shortage{{ProductID: "product-a", Reason: ShortageReason}}}
	useCase.On("PlaceOrder", mock.Anything, mock.Anything).Return(nil, shortageErr)

	w := postJSON(t, r, "/api/orders", validRequest())

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "product-a")
	assert.Contains(t, w.Body.String(), ShortageReason)
}

func TestPlaceOrderHandlerMapsValidationToBadRequest(t *testing.T) {
	useCase := new(MockOrderUseCase)
	r := setupRouter(useCase)

	useCase.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(nil, &InvalidRequestError{Reason: "delivery address must have street and city"})

	w := postJSON(t, r, "/api/orders", validRequest())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "delivery address")
}

func TestPlaceOrderHandlerKeepsInfraDetailsOpaque(t *testing.T) {
	useCase := new(MockOrderUseCase)
	r := setupRouter(useCase)

	useCase.On("PlaceOrder", mock.Anything, mock.Anything).
		Return(nil, errors.New("pgx: connection refused on 10.0.0.3:5432"))

	w := postJSON(t, r, "/api/orders", validRequest())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// internal store details never cross the boundary
	assert.NotContains(t, w.Body.String(), "pgx")
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
}

func TestGetOrderHandlerNotFound(t *testing.T) {
	useCase := new(MockOrderUseCase)
	r := setupRouter(useCase)

	useCase.On("GetOrder", mock.Anything, "missing").
		Return(nil, ErrOrderNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/missing", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReserveItemHandlerMapsShortageToConflict(t *testing.T) {
	useCase := new(MockOrderUseCase)
	r := setupRouter(useCase)

	useCase.On("ReserveItem", mock.Anything, mock.AnythingOfType("main.SagaReserveRequest")).
		Return(ErrInsufficientStock)

	w := postJSON(t, r, "/api/inventory/reserve", SagaReserveRequest{
		OrderID:   "order-42",
		ProductID: "product-a",
		Quantity:  2,
	})

	// 409 tells DTM to compensate instead of retrying
	assert.Equal(t, http.StatusConflict, w.Code)
}

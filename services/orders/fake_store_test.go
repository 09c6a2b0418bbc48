package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// fakeStore implementa Repository em memória, com a mesma disciplina de
// decremento condicional do Postgres (mutex no lugar da atomicidade do
// UPDATE condicional)
type fakeStore struct {
	mu        sync.Mutex
	stock     map[string]int
	movements map[string]bool
	orders    map[string]*Order

	failRead    bool
	failCreate  bool
	failRelease bool
}

func newFakeStore(stock map[string]int) *fakeStore {
	copied := make(map[string]int, len(stock))
	for id, qty := range stock {
		copied[id] = qty
	}
	return &fakeStore{
		stock:     copied,
		movements: make(map[string]bool),
		orders:    make(map[string]*Order),
	}
}

func (s *fakeStore) stockOf(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[productID]
}

func movementKey(orderID, productID, movementType string) string {
	return orderID + "|" + productID + "|" + movementType
}

func (s *fakeStore) GetProductInventory(_ context.Context, productID string) (*ProductInventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRead {
		return nil, errors.New("store unreachable")
	}
	qty, ok := s.stock[productID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return &ProductInventory{ID: productID, CurrentStock: qty, Version: 1}, nil
}

func (s *fakeStore) ReserveStock(_ context.Context, productID, orderID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.movements[movementKey(orderID, productID, MovementTypeDecreased)] {
		return nil
	}
	qty, ok := s.stock[productID]
	if !ok || qty < quantity {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, productID)
	}
	s.stock[productID] = qty - quantity
	s.movements[movementKey(orderID, productID, MovementTypeDecreased)] = true
	return nil
}

func (s *fakeStore) ReleaseStock(_ context.Context, productID, orderID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failRelease {
		return errors.New("store unreachable")
	}
	if s.movements[movementKey(orderID, productID, MovementTypeIncreased)] {
		return nil
	}
	s.stock[productID] += quantity
	s.movements[movementKey(orderID, productID, MovementTypeIncreased)] = true
	return nil
}

func (s *fakeStore) RestockProduct(_ context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stock[productID]; !ok {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	s.stock[productID] += quantity
	return nil
}

func (s *fakeStore) PlaceOrder(_ context.Context, order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return fmt.Errorf("%w: %s", ErrOrderAlreadyPlaced, order.ID)
	}

	var shortages []Shortage
	for _, item := range sortedItems(order.Items) {
		qty, ok := s.stock[item.ProductID]
		if !ok || qty < item.Quantity {
			shortages = append(shortages, Shortage{ProductID: item.ProductID, Reason: ShortageReason})
		}
	}
	if len(shortages) > 0 {
		return &ShortageError{Shortages: shortages}
	}

	for _, item := range order.Items {
		s.stock[item.ProductID] -= item.Quantity
		s.movements[movementKey(order.ID, item.ProductID, MovementTypeDecreased)] = true
	}
	order.Status = OrderStatusCompleted
	s.orders[order.ID] = order
	return nil
}

func (s *fakeStore) CreateOrder(_ context.Context, order *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCreate {
		return errors.New("store unreachable")
	}
	if _, ok := s.orders[order.ID]; ok {
		return fmt.Errorf("%w: %s", ErrOrderAlreadyPlaced, order.ID)
	}
	s.orders[order.ID] = order
	return nil
}

func (s *fakeStore) OrderExists(_ context.Context, orderID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.orders[orderID]
	return ok, nil
}

func (s *fakeStore) GetOrder(_ context.Context, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

func (s *fakeStore) ListOrders(_ context.Context) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := make([]*Order, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, order)
	}
	return orders, nil
}

func (s *fakeStore) UpdateOrderStatus(_ context.Context, orderID string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order, ok := s.orders[orderID]; ok {
		order.Status = status
	}
	return nil
}

func (s *fakeStore) UpdateDeliveryAddress(_ context.Context, orderID string, address DeliveryAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	order.DeliveryAddress = address
	return nil
}

func (s *fakeStore) DeleteOrder(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[orderID]; !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	delete(s.orders, orderID)
	return nil
}

func testAddress() DeliveryAddress {
	return DeliveryAddress{
		Street:     "Av. Paulista, 1000",
		City:       "São Paulo",
		PostalCode: "01310-100",
		Country:    "BR",
	}
}

package main

import (
	"strings"
	"testing"
	"time"
)

func TestNewOrder(t *testing.T) {
	// Arrange
	id := "test-order-123"
	address := testAddress()
	items := []LineItem{
		{ProductID: "product-a", Quantity: 2},
		{ProductID: "product-b", Quantity: 1},
	}

	// Act
	order := NewOrder(id, address, items)

	// Assert
	if order.ID != id {
		t.Errorf("Expected ID %s, got %s", id, order.ID)
	}
	if order.Status != OrderStatusPending {
		t.Errorf("Expected Status %s, got %s", OrderStatusPending, order.Status)
	}
	if order.DeliveryAddress != address {
		t.Errorf("Expected DeliveryAddress %+v, got %+v", address, order.DeliveryAddress)
	}
	if len(order.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(order.Items))
	}
	if order.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
	if order.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be set")
	}

	now := time.Now()
	if order.CreatedAt.After(now) || order.CreatedAt.Before(now.Add(-time.Second)) {
		t.Error("CreatedAt is not within expected time range")
	}

	// The order keeps its own copy of the line items
	items[0].Quantity = 99
	if order.Items[0].Quantity != 2 {
		t.Error("Expected order items to be a copy of the request items")
	}
}

func TestOrderComplete(t *testing.T) {
	order := NewOrder("o-1", testAddress(), []LineItem{{ProductID: "p", Quantity: 1}})

	if err := order.Complete(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if order.Status != OrderStatusCompleted {
		t.Errorf("Expected Status %s, got %s", OrderStatusCompleted, order.Status)
	}

	if err := order.Complete(); err == nil {
		t.Error("Expected error when completing a non-pending order")
	}
}

func TestOrderFail(t *testing.T) {
	order := NewOrder("o-1", testAddress(), []LineItem{{ProductID: "p", Quantity: 1}})

	if err := order.Fail(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if order.Status != OrderStatusRejected {
		t.Errorf("Expected Status %s, got %s", OrderStatusRejected, order.Status)
	}

	if err := order.Fail(); err == nil {
		t.Error("Expected error when failing a non-pending order")
	}
}

func TestDeliveryAddressEmpty(t *testing.T) {
	cases := []struct {
		name    string
		address DeliveryAddress
		empty   bool
	}{
		{"complete", testAddress(), false},
		{"zero value", DeliveryAddress{}, true},
		{"missing street", DeliveryAddress{City: "São Paulo"}, true},
		{"missing city", DeliveryAddress{Street: "Av. Paulista, 1000"}, true},
		{"blank street", DeliveryAddress{Street: "   ", City: "São Paulo"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.address.Empty(); got != tc.empty {
				t.Errorf("Empty() = %v, expected %v", got, tc.empty)
			}
		})
	}
}

func TestNewProductInventory(t *testing.T) {
	inventory := NewProductInventory("product-1", "mechanical keyboard", 1000)

	if inventory.ID != "product-1" {
		t.Errorf("Expected ID product-1, got %s", inventory.ID)
	}
	if inventory.ProductName != "mechanical keyboard" {
		t.Errorf("Expected ProductName 'mechanical keyboard', got %s", inventory.ProductName)
	}
	if inventory.CurrentStock != 1000 {
		t.Errorf("Expected CurrentStock 1000, got %d", inventory.CurrentStock)
	}
	if inventory.Version != 1 {
		t.Errorf("Expected Version 1, got %d", inventory.Version)
	}
	if inventory.CreatedAt.IsZero() || inventory.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}
}

func TestNewInventoryMovement(t *testing.T) {
	movement := NewInventoryMovement("m-1", "product-1", "order-42", 3, MovementTypeDecreased)

	if movement.ID != "m-1" {
		t.Errorf("Expected ID m-1, got %s", movement.ID)
	}
	if movement.InventoryID != "product-1" {
		t.Errorf("Expected InventoryID product-1, got %s", movement.InventoryID)
	}
	if movement.OrderID != "order-42" {
		t.Errorf("Expected OrderID order-42, got %s", movement.OrderID)
	}
	if movement.ChangeQuantity != 3 {
		t.Errorf("Expected ChangeQuantity 3, got %d", movement.ChangeQuantity)
	}
	if movement.MovementType != MovementTypeDecreased {
		t.Errorf("Expected MovementType %s, got %s", MovementTypeDecreased, movement.MovementType)
	}
	if movement.CreatedAt.IsZero() {
		t.Error("Expected CreatedAt to be set")
	}
}

func TestShortageErrorMessage(t *testing.T) {
	err := &ShortageError{Shortages: []Shortage{
		{ProductID: "product-a", Reason: ShortageReason},
		{ProductID: "product-b", Reason: ShortageReason},
	}}

	msg := err.Error()
	if !strings.Contains(msg, "product-a") || !strings.Contains(msg, "product-b") {
		t.Errorf("Expected message to name every product, got %q", msg)
	}
}

func TestOrderStatus(t *testing.T) {
	if OrderStatusPending != "pending" {
		t.Errorf("Expected OrderStatusPending to be 'pending', got %s", OrderStatusPending)
	}
	if OrderStatusCompleted != "completed" {
		t.Errorf("Expected OrderStatusCompleted to be 'completed', got %s", OrderStatusCompleted)
	}
	if OrderStatusRejected != "rejected" {
		t.Errorf("Expected OrderStatusRejected to be 'rejected', got %s", OrderStatusRejected)
	}
}

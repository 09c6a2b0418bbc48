package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Order representa um pedido no sistema
type Order struct {
	ID              string          `json:"id" db:"id"`
	Status          string          `json:"status" db:"status"`
	DeliveryAddress DeliveryAddress `json:"delivery_address"`
	Items           []LineItem      `json:"items"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderStatus representa os possíveis status de um pedido
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusRejected  = "rejected"
)

// NewOrder cria uma nova instância de Order
func NewOrder(id string, address DeliveryAddress, items []LineItem) *Order {
	copied := make([]LineItem, len(items))
	copy(copied, items)

	return &Order{
		ID:              id,
		Status:          OrderStatusPending,
		DeliveryAddress: address,
		Items:           copied,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

func (o *Order) Complete() error {
	if o.Status != OrderStatusPending {
		return errors.New("only pending orders can be completed")
	}

	o.Status = OrderStatusCompleted
	return nil
}

func (o *Order) Fail() error {
	if o.Status != OrderStatusPending {
		return errors.New("only pending orders can be marked as failed")
	}

	o.Status = OrderStatusRejected
	return nil
}

// DeliveryAddress é o endereço de entrega do pedido
type DeliveryAddress struct {
	Street     string `json:"street" db:"delivery_street"`
	City       string `json:"city" db:"delivery_city"`
	PostalCode string `json:"postal_code" db:"delivery_postal_code"`
	Country    string `json:"country" db:"delivery_country"`
}

// Empty reporta se o endereço não tem os campos obrigatórios
func (a DeliveryAddress) Empty() bool {
	return strings.TrimSpace(a.Street) == "" || strings.TrimSpace(a.City) == ""
}

// LineItem é um par (produto, quantidade) dentro de um pedido
type LineItem struct {
	ProductID string `json:"product_id" db:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" db:"quantity" binding:"required,gt=0"`
}

// ProductInventory representa o inventário de um produto
type ProductInventory struct {
	ID           string    `json:"id" db:"id"`
	ProductName  string    `json:"product_name" db:"product_name"`
	CurrentStock int       `json:"current_stock" db:"current_stock"`
	Version      int       `json:"version" db:"version"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// NewProductInventory cria uma nova instância de ProductInventory
func NewProductInventory(id, name string, initialStock int) *ProductInventory {
	return &ProductInventory{
		ID:           id,
		ProductName:  name,
		CurrentStock: initialStock,
		Version:      1,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

// InventoryMovement representa uma movimentação de estoque
type InventoryMovement struct {
	ID             string    `json:"id" db:"id"`
	InventoryID    string    `json:"inventory_id" db:"inventory_id"`
	OrderID        string    `json:"order_id" db:"order_id"`
	ChangeQuantity int       `json:"change_quantity" db:"change_quantity"`
	MovementType   string    `json:"movement_type" db:"movement_type"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// NewInventoryMovement cria uma nova instância de InventoryMovement
func NewInventoryMovement(id, inventoryID, orderID string, changeQuantity int, movementType string) *InventoryMovement {
	return &InventoryMovement{
		ID:             id,
		InventoryID:    inventoryID,
		OrderID:        orderID,
		ChangeQuantity: changeQuantity,
		MovementType:   movementType,
		CreatedAt:      time.Now(),
	}
}

// MovementType representa os tipos de movimentação de estoque
const (
	MovementTypeDecreased = "decreased"
	MovementTypeIncreased = "increased"
)

// ShortageReason é o motivo reportado para cada item sem estoque
const ShortageReason = "insufficient stock"

// Shortage identifica um item que não pôde ser atendido
type Shortage struct {
	ProductID string `json:"product_id"`
	Reason    string `json:"reason"`
}

// ShortageError é a rejeição por falta de estoque, com o detalhe por item
type ShortageError struct {
	Shortages []Shortage
}

func (e *ShortageError) Error() string {
	ids := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		ids[i] = s.ProductID
	}
	return fmt.Sprintf("insufficient stock for products: %s", strings.Join(ids, ", "))
}

// InvalidRequestError é a rejeição por requisição malformada, antes de
// qualquer acesso ao banco
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return e.Reason
}

// CompensationError indica que uma compensação não pôde ser aplicada e o
// inventário pode estar inconsistente. Exige atenção do operador, não retry.
type CompensationError struct {
	OrderID string
	Pending []LineItem
	Err     error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation incomplete for order %s (%d items pending): %v",
		e.OrderID, len(e.Pending), e.Err)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")

	// ErrOrderAlreadyPlaced sinaliza que um pedido com o mesmo ID já foi
	// gravado por uma requisição concorrente. O estoque reservado pertence
	// ao pedido gravado e não pode ser compensado.
	ErrOrderAlreadyPlaced = errors.New("order already placed")
)

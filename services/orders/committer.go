package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// ReservationCommitter aplica a reserva tudo-ou-nada de um pedido. Quando
// Commit retorna nil, todo o estoque foi durável e atomicamente
// decrementado e o pedido gravado; em qualquer rejeição o inventário fica
// exatamente como estava.
type ReservationCommitter interface {
	Commit(ctx context.Context, order *Order) error
}

// TransactionCommitter resolve a reserva em uma única transação
// multi-chave que também grava o pedido, eliminando o estado
// "estoque consumido sem pedido gravado"
type TransactionCommitter struct {
	repository PlacementRepository
}

// NewTransactionCommitter cria uma nova instância de TransactionCommitter
func NewTransactionCommitter(repository PlacementRepository) *TransactionCommitter {
	return &TransactionCommitter{repository: repository}
}

func (c *TransactionCommitter) Commit(ctx context.Context, order *Order) error {
	return c.repository.PlaceOrder(ctx, order)
}

// CompensatingCommitter resolve a reserva em duas fases: decrementos
// condicionais item a item em ordem crescente de produto e, se algum
// falhar (ou a gravação do pedido falhar), incrementos de compensação na
// ordem inversa
type CompensatingCommitter struct {
	inventory InventoryRepository
	orders    OrderRepository
}

// NewCompensatingCommitter cria uma nova instância de CompensatingCommitter
func NewCompensatingCommitter(inventory InventoryRepository, orders OrderRepository) *CompensatingCommitter {
	return &CompensatingCommitter{inventory: inventory, orders: orders}
}

func (c *CompensatingCommitter) Commit(ctx context.Context, order *Order) error {
	items := sortedItems(order.Items)

	reserved := make([]LineItem, 0, len(items))
	for _, item := range items {
		if err := c.inventory.ReserveStock(ctx, item.ProductID, order.ID, item.Quantity); err != nil {
			if cerr := c.release(ctx, order.ID, reserved); cerr != nil {
				return cerr
			}
			if errors.Is(err, ErrInsufficientStock) {
				return &ShortageError{Shortages: []Shortage{{ProductID: item.ProductID, Reason: ShortageReason}}}
			}
			return fmt.Errorf("reserving stock for %s: %w", item.ProductID, err)
		}
		reserved = append(reserved, item)
	}

	order.Status = OrderStatusCompleted
	if err := c.orders.CreateOrder(ctx, order); err != nil {
		order.Status = OrderStatusPending
		// Pedido já gravado por uma requisição concorrente com o mesmo ID:
		// os decrementos pertencem ao pedido vencedor (ReserveStock foi
		// no-op idempotente aqui), então compensar duplicaria o estoque
		if errors.Is(err, ErrOrderAlreadyPlaced) {
			return err
		}
		if cerr := c.release(ctx, order.ID, reserved); cerr != nil {
			return cerr
		}
		return fmt.Errorf("recording order %s: %w", order.ID, err)
	}

	return nil
}

// release desfaz os decrementos já aplicados, na ordem inversa. Roda fora
// do contexto da requisição: a compensação precisa acontecer mesmo que o
// chamador já tenha desistido.
func (c *CompensatingCommitter) release(ctx context.Context, orderID string, reserved []LineItem) error {
	ctx = context.WithoutCancel(ctx)
	for i := len(reserved) - 1; i >= 0; i-- {
		item := reserved[i]
		if err := c.inventory.ReleaseStock(ctx, item.ProductID, orderID, item.Quantity); err != nil {
			return &CompensationError{
				OrderID: orderID,
				Pending: reserved[:i+1],
				Err:     err,
			}
		}
	}
	return nil
}

// sortedItems retorna uma cópia dos itens em ordem crescente de produto.
// Ordem fixa entre pedidos concorrentes que compartilham produtos evita
// deadlock e livelock.
func sortedItems(items []LineItem) []LineItem {
	sorted := make([]LineItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductID < sorted[j].ProductID
	})
	return sorted
}

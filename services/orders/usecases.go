package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// OrderUseCase contém a lógica de negócio dos pedidos. É o único dono da
// criação de registros de pedido.
type OrderUseCase struct {
	checker   StockChecker
	committer ReservationCommitter
	orders    OrderRepository
	inventory InventoryRepository
	metrics   *PlacementMetrics
}

// NewOrderUseCase cria uma nova instância de OrderUseCase
func NewOrderUseCase(
	checker StockChecker,
	committer ReservationCommitter,
	orders OrderRepository,
	inventory InventoryRepository,
	metrics *PlacementMetrics,
) *OrderUseCase {
	return &OrderUseCase{
		checker:   checker,
		committer: committer,
		orders:    orders,
		inventory: inventory,
		metrics:   metrics,
	}
}

// PlaceOrder valida a requisição, faz a checagem consultiva de estoque e
// delega a reserva autoritativa ao committer
func (uc *OrderUseCase) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	start := time.Now()
	defer func() { uc.metrics.Observe(ctx, start) }()

	// Violação de forma rejeita antes de qualquer acesso ao banco
	if err := validatePlacement(req); err != nil {
		uc.metrics.Rejected(ctx)
		return nil, err
	}

	orderID := req.RequestID
	if orderID == "" {
		orderID = uuid.New().String()
	} else {
		// Retry idempotente: request_id repetido devolve o pedido já
		// colocado em vez de reservar de novo
		existing, err := uc.orders.GetOrder(ctx, orderID)
		if err == nil {
			log.Info().Str("order_id", orderID).Msg("placement replayed, returning existing order")
			return existing, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			uc.metrics.Failed(ctx)
			return nil, fmt.Errorf("checking placement idempotency: %w", err)
		}
	}

	// Checagem consultiva: falha rápido com a lista completa de faltas,
	// mas quem garante é o decremento condicional do committer
	shortages, err := uc.checker.Check(ctx, req.Items)
	if err != nil {
		uc.metrics.Failed(ctx)
		return nil, err
	}
	if len(shortages) > 0 {
		uc.metrics.Rejected(ctx)
		return nil, &ShortageError{Shortages: shortages}
	}

	order := NewOrder(orderID, req.DeliveryAddress, req.Items)
	if err := uc.committer.Commit(ctx, order); err != nil {
		// Corrida entre dois retries com o mesmo request_id: o perdedor
		// devolve o pedido que o vencedor gravou
		if errors.Is(err, ErrOrderAlreadyPlaced) {
			existing, gerr := uc.orders.GetOrder(ctx, orderID)
			if gerr != nil {
				uc.metrics.Failed(ctx)
				return nil, fmt.Errorf("fetching replayed order %s: %w", orderID, gerr)
			}
			log.Info().Str("order_id", orderID).Msg("placement replayed at commit time, returning existing order")
			return existing, nil
		}
		var shortageErr *ShortageError
		var compErr *CompensationError
		switch {
		case errors.As(err, &shortageErr):
			// Corrida perdida para um pedido concorrente: desfecho normal
			uc.metrics.Rejected(ctx)
			log.Info().Str("order_id", orderID).Err(err).Msg("placement rejected at commit time")
		case errors.As(err, &compErr):
			uc.metrics.Integrity(ctx)
			log.Error().
				Str("severity", "integrity").
				Str("order_id", compErr.OrderID).
				Int("pending_items", len(compErr.Pending)).
				Err(err).
				Msg("compensation incomplete, inventory may be inconsistent")
		default:
			uc.metrics.Failed(ctx)
			log.Error().Str("order_id", orderID).Err(err).Msg("placement failed")
		}
		return nil, err
	}

	uc.metrics.Accepted(ctx)
	log.Info().Str("order_id", order.ID).Int("items", len(order.Items)).Msg("order accepted")
	return order, nil
}

// GetOrder busca um pedido pelo ID
func (uc *OrderUseCase) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return uc.orders.GetOrder(ctx, orderID)
}

// ListOrders lista todos os pedidos
func (uc *OrderUseCase) ListOrders(ctx context.Context) ([]*Order, error) {
	return uc.orders.ListOrders(ctx)
}

// UpdateDeliveryAddress atualiza somente o endereço de entrega
func (uc *OrderUseCase) UpdateDeliveryAddress(ctx context.Context, orderID string, address DeliveryAddress) error {
	if address.Empty() {
		return &InvalidRequestError{Reason: "delivery address must have street and city"}
	}
	return uc.orders.UpdateDeliveryAddress(ctx, orderID, address)
}

// DeleteOrder remove um pedido. Não toca inventário.
func (uc *OrderUseCase) DeleteOrder(ctx context.Context, orderID string) error {
	return uc.orders.DeleteOrder(ctx, orderID)
}

// Restock repõe estoque de um produto
func (uc *OrderUseCase) Restock(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return &InvalidRequestError{Reason: "restock quantity must be positive"}
	}
	return uc.inventory.RestockProduct(ctx, productID, quantity)
}

// CreateOrder é a ação SAGA para criar um pedido pendente
func (uc *OrderUseCase) CreateOrder(ctx context.Context, req SagaOrderRequest) error {
	exists, err := uc.orders.OrderExists(ctx, req.OrderID)
	if err != nil {
		return fmt.Errorf("failed to check order existence: %w", err)
	}
	if exists {
		return nil
	}

	order := NewOrder(req.OrderID, req.DeliveryAddress, req.Items)
	if err := uc.orders.CreateOrder(ctx, order); err != nil {
		// corrida perdida entre a checagem e o insert: já criado, sucesso
		if errors.Is(err, ErrOrderAlreadyPlaced) {
			return nil
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// CompleteOrder marca o pedido como completado
func (uc *OrderUseCase) CompleteOrder(ctx context.Context, orderID string) error {
	if err := uc.orders.UpdateOrderStatus(ctx, orderID, OrderStatusCompleted); err != nil {
		return fmt.Errorf("failed to complete order: %w", err)
	}
	return nil
}

// CancelOrder marca o pedido como rejeitado (compensação)
func (uc *OrderUseCase) CancelOrder(ctx context.Context, orderID string) error {
	if err := uc.orders.UpdateOrderStatus(ctx, orderID, OrderStatusRejected); err != nil {
		return fmt.Errorf("failed to compensate order: %w", err)
	}
	return nil
}

// ReserveItem é a ação SAGA de reserva de um item
func (uc *OrderUseCase) ReserveItem(ctx context.Context, req SagaReserveRequest) error {
	return uc.inventory.ReserveStock(ctx, req.ProductID, req.OrderID, req.Quantity)
}

// CompensateItem é a ação SAGA que devolve a reserva de um item
func (uc *OrderUseCase) CompensateItem(ctx context.Context, req SagaReserveRequest) error {
	return uc.inventory.ReleaseStock(ctx, req.ProductID, req.OrderID, req.Quantity)
}

func validatePlacement(req PlaceOrderRequest) error {
	if req.DeliveryAddress.Empty() {
		return &InvalidRequestError{Reason: "delivery address must have street and city"}
	}
	if len(req.Items) == 0 {
		return &InvalidRequestError{Reason: "order must have at least one line item"}
	}

	seen := make(map[string]bool, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID == "" {
			return &InvalidRequestError{Reason: "line item product_id is required"}
		}
		if item.Quantity <= 0 {
			return &InvalidRequestError{Reason: fmt.Sprintf("quantity for product %s must be positive", item.ProductID)}
		}
		if seen[item.ProductID] {
			return &InvalidRequestError{Reason: fmt.Sprintf("duplicate line item for product %s", item.ProductID)}
		}
		seen[item.ProductID] = true
	}
	return nil
}

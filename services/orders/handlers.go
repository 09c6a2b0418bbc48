package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OrderUseCaseInterface define a interface para o use case
type OrderUseCaseInterface interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrders(ctx context.Context) ([]*Order, error)
	UpdateDeliveryAddress(ctx context.Context, orderID string, address DeliveryAddress) error
	DeleteOrder(ctx context.Context, orderID string) error
	Restock(ctx context.Context, productID string, quantity int) error

	// ações das branches SAGA
	CreateOrder(ctx context.Context, req SagaOrderRequest) error
	CompleteOrder(ctx context.Context, orderID string) error
	CancelOrder(ctx context.Context, orderID string) error
	ReserveItem(ctx context.Context, req SagaReserveRequest) error
	CompensateItem(ctx context.Context, req SagaReserveRequest) error
}

// OrderHandler contém os handlers HTTP
type OrderHandler struct {
	useCase OrderUseCaseInterface
	tracer  trace.Tracer
}

// NewOrderHandler cria uma nova instância de OrderHandler
func NewOrderHandler(useCase OrderUseCaseInterface, tracer trace.Tracer) *OrderHandler {
	return &OrderHandler{useCase: useCase, tracer: tracer}
}

// PlaceOrder recebe a requisição de colocação de pedido e traduz o
// desfecho tipado para HTTP
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "place_order")
	defer span.End()

	span.SetAttributes(
		attribute.Int("line_items", len(req.Items)),
		attribute.String("request_id", req.RequestID),
	)

	order, err := h.useCase.PlaceOrder(ctx, req)
	if err != nil {
		span.RecordError(err)

		var invalidErr *InvalidRequestError
		var shortageErr *ShortageError
		switch {
		case errors.As(err, &invalidErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": invalidErr.Reason})
		case errors.As(err, &shortageErr):
			c.JSON(http.StatusConflict, gin.H{"shortages": shortageErr.Shortages})
		default:
			// Causa opaca: detalhes de infraestrutura ficam nos logs
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to place order"})
		}
		return
	}

	span.SetAttributes(attribute.String("order_id", order.ID))

	c.JSON(http.StatusCreated, gin.H{
		"order_id":         order.ID,
		"status":           order.Status,
		"delivery_address": order.DeliveryAddress,
		"items":            order.Items,
		"created_at":       order.CreatedAt,
	})
}

// GetOrder busca um pedido pelo ID
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.useCase.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get order"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListOrders lista todos os pedidos
func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.useCase.ListOrders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// UpdateDeliveryAddress atualiza somente o endereço de entrega
func (h *OrderHandler) UpdateDeliveryAddress(c *gin.Context) {
	var req UpdateAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.useCase.UpdateDeliveryAddress(c.Request.Context(), c.Param("id"), req.DeliveryAddress)
	if err != nil {
		var invalidErr *InvalidRequestError
		switch {
		case errors.As(err, &invalidErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": invalidErr.Reason})
		case errors.Is(err, ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update delivery address"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// DeleteOrder remove um pedido
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	err := h.useCase.DeleteOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete order"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// Restock repõe estoque de um produto
func (h *OrderHandler) Restock(c *gin.Context) {
	var req RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.useCase.Restock(c.Request.Context(), c.Param("id"), req.Quantity)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to restock product"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// CreateOrder é o endpoint da branch SAGA que cria o pedido pendente
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req SagaOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := startSpanFromPayload(c.Request.Context(), "saga.create_order", req.TraceID, req.SpanID)
	defer span.End()
	span.SetAttributes(attribute.String("order_id", req.OrderID))

	if err := h.useCase.CreateOrder(ctx, req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// CompleteOrder é o endpoint da branch SAGA que completa o pedido
func (h *OrderHandler) CompleteOrder(c *gin.Context) {
	var req SagaOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := startSpanFromPayload(c.Request.Context(), "saga.complete_order", req.TraceID, req.SpanID)
	defer span.End()
	span.SetAttributes(attribute.String("order_id", req.OrderID))

	if err := h.useCase.CompleteOrder(ctx, req.OrderID); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// CompensateOrder é o endpoint da branch SAGA que rejeita o pedido
func (h *OrderHandler) CompensateOrder(c *gin.Context) {
	var req SagaOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := startSpanFromPayload(c.Request.Context(), "saga.compensate_order", req.TraceID, req.SpanID)
	defer span.End()
	span.SetAttributes(attribute.String("order_id", req.OrderID))

	if err := h.useCase.CancelOrder(ctx, req.OrderID); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// ReserveItem é o endpoint da branch SAGA de reserva de estoque. 409
// sinaliza falha de negócio para o DTM (compensar, não tentar de novo).
func (h *OrderHandler) ReserveItem(c *gin.Context) {
	var req SagaReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := startSpanFromPayload(c.Request.Context(), "saga.reserve_item", req.TraceID, req.SpanID)
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.String("product_id", req.ProductID),
		attribute.Int("quantity", req.Quantity),
	)

	if err := h.useCase.ReserveItem(ctx, req); err != nil {
		span.RecordError(err)
		log.Info().Str("order_id", req.OrderID).Str("product_id", req.ProductID).Err(err).Msg("reserve branch failed")

		if errors.Is(err, ErrInsufficientStock) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reserve stock"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// CompensateItem é o endpoint da branch SAGA que devolve uma reserva
func (h *OrderHandler) CompensateItem(c *gin.Context) {
	var req SagaReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, span := startSpanFromPayload(c.Request.Context(), "saga.compensate_item", req.TraceID, req.SpanID)
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.String("product_id", req.ProductID),
	)

	if err := h.useCase.CompensateItem(ctx, req); err != nil {
		span.RecordError(err)
		// 500 faz o DTM tentar de novo: compensação não pode ser perdida
		log.Error().Str("severity", "integrity").Str("order_id", req.OrderID).Err(err).Msg("compensate branch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compensate stock"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// HealthCheck verifica a saúde do serviço
func (h *OrderHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "order-placement-service",
	})
}

package main

// PlaceOrderRequest representa a requisição para criar um pedido
type PlaceOrderRequest struct {
	// RequestID opcional permite retry idempotente: vira o ID do pedido
	RequestID       string          `json:"request_id"`
	DeliveryAddress DeliveryAddress `json:"delivery_address"`
	Items           []LineItem      `json:"items" binding:"required,min=1,dive"`
}

// UpdateAddressRequest atualiza apenas o endereço de entrega
type UpdateAddressRequest struct {
	DeliveryAddress DeliveryAddress `json:"delivery_address"`
}

// RestockRequest repõe estoque de um produto
type RestockRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// SagaOrderRequest é o payload das branches de pedido da SAGA
type SagaOrderRequest struct {
	OrderID         string          `json:"order_id" binding:"required"`
	DeliveryAddress DeliveryAddress `json:"delivery_address"`
	Items           []LineItem      `json:"items"`
	// Manual trace context propagation (DTM doesn't propagate W3C headers)
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// SagaReserveRequest é o payload das branches de inventário da SAGA,
// uma branch por item do pedido
type SagaReserveRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	TraceID   string `json:"trace_id,omitempty"`
	SpanID    string `json:"span_id,omitempty"`
}

package main

import (
	"context"
	"fmt"

	"github.com/dtm-labs/client/dtmcli"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SagaCommitter implementa ReservationCommitter delegando a orquestração
// ao DTM: uma branch de criação do pedido, uma branch de reserva por item
// (ordem crescente de produto) e uma branch final de conclusão, cada uma
// com sua compensação. O DTM executa as compensações na ordem inversa
// quando alguma branch falha.
//
// Neste modo o Commit retorna assim que a SAGA é aceita; o pedido nasce
// pendente e é completado (ou rejeitado) pelas próprias branches.
type SagaCommitter struct {
	dtmServer  string
	serviceURL string
}

// NewSagaCommitter cria uma nova instância de SagaCommitter
func NewSagaCommitter(dtmServer, serviceURL string) *SagaCommitter {
	return &SagaCommitter{dtmServer: dtmServer, serviceURL: serviceURL}
}

func (sc *SagaCommitter) Commit(ctx context.Context, order *Order) (err error) {
	var traceID, spanID string
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		traceID = span.SpanContext().TraceID().String()
		spanID = span.SpanContext().SpanID().String()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dtm server unavailable: %v", r)
		}
	}()
	gid := dtmcli.MustGenGid(sc.dtmServer)

	ctx, span := CreateSagaSpan(ctx, "place_order", gid)
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", order.ID),
		attribute.Int("line_items", len(order.Items)),
	)

	log.Info().Str("gid", gid).Str("order_id", order.ID).Msg("🚀 starting placement saga")

	saga := sc.buildSaga(gid, order, traceID, spanID)
	if err := saga.Submit(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "saga submit failed")
		return fmt.Errorf("failed to submit placement saga: %w", err)
	}

	log.Info().Str("gid", gid).Str("order_id", order.ID).Msg("✅ placement saga submitted")
	return nil
}

// buildSaga monta a lista de branches: criação do pedido, uma reserva por
// item em ordem crescente de produto e a conclusão. As compensações são
// executadas pelo DTM na ordem inversa.
func (sc *SagaCommitter) buildSaga(gid string, order *Order, traceID, spanID string) *dtmcli.Saga {
	orderPayload := &SagaOrderRequest{
		OrderID:         order.ID,
		DeliveryAddress: order.DeliveryAddress,
		Items:           order.Items,
		TraceID:         traceID,
		SpanID:          spanID,
	}

	saga := dtmcli.NewSaga(sc.dtmServer, gid).
		Add(
			sc.serviceURL+"/api/orders/create",
			sc.serviceURL+"/api/orders/compensate",
			orderPayload,
		)

	for _, item := range sortedItems(order.Items) {
		saga.Add(
			sc.serviceURL+"/api/inventory/reserve",
			sc.serviceURL+"/api/inventory/compensate",
			&SagaReserveRequest{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				TraceID:   traceID,
				SpanID:    spanID,
			},
		)
	}

	saga.Add(
		sc.serviceURL+"/api/orders/complete",
		"",
		orderPayload,
	)
	return saga
}

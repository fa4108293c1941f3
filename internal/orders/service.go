package orders

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("wholesale.orders")

// Service runs the fulfillment workflow: inventory ledger, purchase requests,
// payments and range reports. Every operation that reads then writes runs in
// a single Store transaction. Events are published only after commit.
type Service struct {
	Store    Store
	Events   Publisher   // nil disables publishing
	Log      *zap.Logger // nil means no logging
	Producer string
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Service) emit(ctx context.Context, topic, eventType string, id int64, payload any) {
	if s.Events == nil {
		return
	}
	var traceID string
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	env, err := NewEnvelope(eventType, s.Producer, traceID, strconv.FormatInt(id, 10), payload)
	if err != nil {
		s.logger().Error("encode event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	s.Events.Publish(topic, PartitionKey(id), env)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Package verifier is the automated availability check: it consumes
// RequestCreated events, verifies the new request against stock and publishes
// the outcome. It never accepts a request.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	kafkax "github.com/ariefcatur/go-wholesale-orders/internal/kafka"
	"github.com/ariefcatur/go-wholesale-orders/internal/orders"
	"github.com/ariefcatur/go-wholesale-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Checker interface {
	VerifyAvailability(ctx context.Context, orderID int64) (bool, []orders.Shortage, error)
}

type Service struct {
	Orders      Checker
	Redis       *redis.Client // nil disables dedup
	Events      orders.Publisher
	Log         *zap.Logger
	ServiceName string
}

// HandleRequestCreated is installed as the consumer handler.
func (s *Service) HandleRequestCreated(ctx context.Context, m kafkago.Message) error {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		log.Warn("skip undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventRequestCreated {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "verifier", env.EventID)
	if s.Redis != nil {
		first, err := redisx.MarkOnce(ctx, s.Redis, dkey, redisx.TTLDedup)
		if err == nil && !first {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.RequestCreatedPayload](env.Payload)
	if err != nil {
		log.Warn("skip bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	ok, shortages, err := s.Orders.VerifyAvailability(ctx, p.OrderID)
	switch {
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, orders.ErrValidation):
		log.Warn("request cannot be verified", zap.Int64("order_id", p.OrderID), zap.Error(err))
		return nil
	case err != nil:
		// let a redelivery try again
		if s.Redis != nil {
			_ = s.Redis.Del(ctx, dkey).Err()
		}
		return err
	}

	if ok {
		log.Info("request verified", zap.Int64("order_id", p.OrderID))
		return s.publish(orders.TopicRequestVerified, orders.EventRequestVerified, env, p.OrderID,
			orders.RequestVerifiedPayload{OrderID: p.OrderID})
	}
	log.Info("request short of stock", zap.Int64("order_id", p.OrderID), zap.Int("shortages", len(shortages)))
	return s.publish(orders.TopicShortageDetected, orders.EventShortageDetected, env, p.OrderID,
		orders.ShortageDetectedPayload{OrderID: p.OrderID, Reason: "OUT_OF_STOCK", Shortages: shortages})
}

func (s *Service) publish(topic, eventType string, cause orders.Envelope, orderID int64, payload any) error {
	if s.Events == nil {
		return nil
	}
	ev, err := orders.NewEnvelope(eventType, s.ServiceName, cause.TraceID, strconv.FormatInt(orderID, 10), payload)
	if err != nil {
		return err
	}
	s.Events.Publish(topic, orders.PartitionKey(orderID), ev)
	return nil
}

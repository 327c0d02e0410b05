// Package event delivers order status changes to interested clients over
// Redis pub/sub. Delivery is best-effort: a slow or absent broker costs a log
// line, never a failed order operation.
package event

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/novadistro/backoffice/internal/domain/order"
)

const publishTimeout = 2 * time.Second

// Envelope is the wire format of an order update event.
type Envelope struct {
	EventID  string `json:"event_id"`
	Type     string `json:"type"`
	OrderID  int64  `json:"order_id"`
	Status   string `json:"status"`
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

// RedisEmitter publishes order updates to per-order Redis channels.
type RedisEmitter struct {
	client *redis.Client
	lg     *zap.Logger
}

// NewRedisEmitter creates an emitter over an existing Redis client.
func NewRedisEmitter(client *redis.Client, lg *zap.Logger) *RedisEmitter {
	return &RedisEmitter{client: client, lg: lg.Named("events")}
}

var _ order.Notifier = (*RedisEmitter)(nil)

// Channel returns the pub/sub channel carrying updates for one order.
func Channel(orderID int64) string {
	return "orders:" + strconv.FormatInt(orderID, 10)
}

// OrderUpdated publishes the new order state. The publish is bounded by its
// own timeout and detached from the request context, so a committed
// transaction is reported even when the caller has gone away.
func (e *RedisEmitter) OrderUpdated(_ context.Context, o *order.Order) {
	env := Envelope{
		EventID:  uuid.New().String(),
		Type:     "ORDER_UPDATED",
		OrderID:  o.ID,
		Status:   string(o.Status),
		Total:    o.Total.String(),
		Currency: o.Currency,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		e.lg.Warn("marshal event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := e.client.Publish(ctx, Channel(o.ID), payload).Err(); err != nil {
		e.lg.Warn("publish order update",
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}
}

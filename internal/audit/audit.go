// Package audit records who did what to which entity. The trail is written
// through a dedicated zap logger so it can be routed to its own sink; a
// failing sink must never fail the operation being audited.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/novadistro/backoffice/internal/domain/order"
)

// Trail writes audit entries.
type Trail struct {
	lg *zap.Logger
}

// NewTrail creates a Trail on a named child of the given logger.
func NewTrail(lg *zap.Logger) *Trail {
	return &Trail{lg: lg.Named("audit")}
}

var _ order.Notifier = (*Trail)(nil)

// Record writes one audit entry.
func (t *Trail) Record(action, entity string, entityID int64, data map[string]any) {
	t.lg.Info("audit",
		zap.String("action", action),
		zap.String("entity", entity),
		zap.Int64("entity_id", entityID),
		zap.Any("data", data),
	)
}

// OrderUpdated audits a committed order state change.
func (t *Trail) OrderUpdated(_ context.Context, o *order.Order) {
	t.Record(actionForStatus(o.Status), "order", o.ID, map[string]any{
		"status": string(o.Status),
		"total":  o.Total.String(),
	})
}

func actionForStatus(st order.Status) string {
	switch st {
	case order.StatusCreated:
		return "create"
	case order.StatusPaid:
		return "pay"
	case order.StatusFulfilled:
		return "fulfill"
	case order.StatusCancelled:
		return "cancel"
	default:
		return "update"
	}
}

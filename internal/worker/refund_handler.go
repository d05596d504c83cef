package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cinebook/cinebook/internal/queue"
)

// Refunder pays back a cancelled reservation.
type Refunder interface {
	Refund(ctx context.Context, reservationID uint64, paymentID string) error
}

// NewRefundHandler returns the queue handler for reservation.cancelled
// events.  Refunds are best-effort: a failed refund is logged for
// out-of-band remediation and the message is still considered handled,
// so the cancellation flow that triggered it is never blocked or
// retried.  Events without a provider payment id carry nothing to
// refund and are skipped.
func NewRefundHandler(refunder Refunder, log *logrus.Entry) queue.HandlerFunc {
	return func(ctx context.Context, body []byte) error {
		var ev queue.ReservationCancelledEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal cancellation event: %w", err)
		}
		if ev.ProviderPaymentID == nil || *ev.ProviderPaymentID == "" {
			log.WithField("reservation_id", ev.ReservationID).
				Debug("cancellation without payment; no refund needed")
			return nil
		}
		if err := refunder.Refund(ctx, ev.ReservationID, *ev.ProviderPaymentID); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"reservation_id": ev.ReservationID,
				"payment_id":     *ev.ProviderPaymentID,
			}).Error("refund failed")
		}
		return nil
	}
}

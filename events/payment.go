package events

import (
	"context"
	"time"

	"github.com/vitwit/jpycpay/logger"
	"github.com/vitwit/jpycpay/payment"
)

const defaultPublishTimeout = 2 * time.Second

// PaymentObserver publishes every controller transition. Publish failures
// are logged and never affect the payment.
type PaymentObserver struct {
	publisher Publisher
	stream    string
	timeout   time.Duration
	log       logger.Logger
}

var _ payment.Observer = (*PaymentObserver)(nil)

func NewPaymentObserver(publisher Publisher, stream string, log logger.Logger) *PaymentObserver {
	if stream == "" {
		stream = DefaultStream
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &PaymentObserver{
		publisher: publisher,
		stream:    stream,
		timeout:   defaultPublishTimeout,
		log:       log,
	}
}

func (o *PaymentObserver) OnTransition(t payment.Transition) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	event := TransitionEvent(t)
	if err := o.publisher.Publish(ctx, o.stream, event); err != nil {
		o.log.Warn("failed to publish payment event", map[string]any{
			"type":  event.Type,
			"error": err,
		})
	}
}

// TransitionEvent converts a transition into its published form.
func TransitionEvent(t payment.Transition) Event {
	eventType := EventPaymentStateChanged
	switch t.To {
	case payment.StateSucceeded:
		eventType = EventPaymentSucceeded
	case payment.StateFailed:
		eventType = EventPaymentFailed
	}

	payload := map[string]any{
		"old_state": t.From.String(),
		"new_state": t.To.String(),
		"token":     t.Token.String(),
		"at":        t.At.UnixMilli(),
	}
	if t.TxHash != "" {
		payload["tx_hash"] = t.TxHash
	}
	if t.Intent != nil {
		payload["amount"] = t.Intent.Amount
		payload["recipient"] = t.Intent.Recipient
		if t.Intent.MerchantName != "" {
			payload["merchant"] = t.Intent.MerchantName
		}
	}
	if t.Err != nil {
		payload["error"] = t.Err.Error()
	}

	return Event{Type: eventType, Payload: payload}
}

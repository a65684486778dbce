package events

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/jpycpay/payment"
	"github.com/vitwit/jpycpay/types"
)

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	stream string
	events []Event
}

func (f *fakePublisher) Publish(_ context.Context, stream string, event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stream = stream
	f.events = append(f.events, event)
	return f.err
}

func TestTransitionEvent(t *testing.T) {
	at := time.UnixMilli(1762568209578)
	intent := &types.PaymentIntent{Amount: "100", Recipient: "0x5888578ad9a33Ce8a9FA3A0ca40816665bfaD8Fd", MerchantName: "Shop"}

	ev := TransitionEvent(payment.Transition{
		From:   payment.StateAwaitingOnChain,
		To:     payment.StateSucceeded,
		At:     at,
		Token:  types.TokenOfficial,
		Intent: intent,
		TxHash: "0xabc",
	})
	assert.Equal(t, EventPaymentSucceeded, ev.Type)
	assert.Equal(t, "awaiting_on_chain", ev.Payload["old_state"])
	assert.Equal(t, "succeeded", ev.Payload["new_state"])
	assert.Equal(t, "0xabc", ev.Payload["tx_hash"])
	assert.Equal(t, "Shop", ev.Payload["merchant"])
	assert.Equal(t, at.UnixMilli(), ev.Payload["at"])

	ev = TransitionEvent(payment.Transition{From: payment.StateSubmitting, To: payment.StateFailed, Err: errors.New("user denied")})
	assert.Equal(t, EventPaymentFailed, ev.Type)
	assert.Equal(t, "user denied", ev.Payload["error"])
	assert.NotContains(t, ev.Payload, "amount")

	ev = TransitionEvent(payment.Transition{From: payment.StateIdle, To: payment.StateAwaitingConfirmation})
	assert.Equal(t, EventPaymentStateChanged, ev.Type)
}

func TestPaymentObserver(t *testing.T) {
	pub := &fakePublisher{}
	obs := NewPaymentObserver(pub, "", nil)

	obs.OnTransition(payment.Transition{From: payment.StateIdle, To: payment.StateAwaitingConfirmation})
	require.Len(t, pub.events, 1)
	assert.Equal(t, DefaultStream, pub.stream)

	pub.err = errors.New("connection refused")
	assert.NotPanics(t, func() {
		obs.OnTransition(payment.Transition{From: payment.StateAwaitingConfirmation, To: payment.StateIdle})
	})
	assert.Len(t, pub.events, 2)
}

func TestEventJSON(t *testing.T) {
	data, err := json.Marshal(Event{Type: EventPaymentSucceeded, Payload: map[string]any{"tx_hash": "0xabc"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"payment_succeeded","payload":{"tx_hash":"0xabc"}}`, string(data))
}

func TestRedisPubSub(t *testing.T) {
	url := os.Getenv("JPYC_TEST_REDIS_URL")
	if url == "" {
		t.Skip("JPYC_TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Event, 1)
	require.NoError(t, NewRedisSubscriber(client, nil).Subscribe(ctx, "events:jpyc-test", func(e Event) { got <- e }))
	require.NoError(t, NewRedisPublisher(client, nil).Publish(ctx, "events:jpyc-test", Event{Type: EventPaymentStateChanged}))

	select {
	case e := <-got:
		assert.Equal(t, EventPaymentStateChanged, e.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("event not delivered")
	}
}

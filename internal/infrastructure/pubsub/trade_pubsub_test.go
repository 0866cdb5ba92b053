package tradepubsub_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
	tradepubsub "github.com/p2pdex-network/escrow-daemon/internal/infrastructure/pubsub"
)

func TestPublishToTradeTopic(t *testing.T) {
	t.Parallel()

	pubsub := tradepubsub.NewTradePubSub()
	tradeId := uuid.New()

	id, events := pubsub.Subscribe(tradeId.String())
	require.NotEmpty(t, id)

	event := newTestEvent(tradeId)
	pubsub.Publish(event)

	require.Equal(t, event, receiveEvent(t, events))
}

func TestPublishToAnyTopic(t *testing.T) {
	t.Parallel()

	pubsub := tradepubsub.NewTradePubSub()

	_, events := pubsub.Subscribe(ports.AnyTopic)

	first := newTestEvent(uuid.New())
	second := newTestEvent(uuid.New())
	pubsub.Publish(first)
	pubsub.Publish(second)

	require.Equal(t, first, receiveEvent(t, events))
	require.Equal(t, second, receiveEvent(t, events))
}

func TestSubscribersOfOtherTradesAreNotNotified(t *testing.T) {
	t.Parallel()

	pubsub := tradepubsub.NewTradePubSub()

	_, events := pubsub.Subscribe(uuid.New().String())
	pubsub.Publish(newTestEvent(uuid.New()))

	select {
	case event := <-events:
		t.Fatalf("unexpected event for trade %s", event.TradeId)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	pubsub := tradepubsub.NewTradePubSub()
	tradeId := uuid.New()

	id, events := pubsub.Subscribe(tradeId.String())
	require.NoError(t, pubsub.Unsubscribe(tradeId.String(), id))

	// the channel is closed on unsubscribe.
	_, open := <-events
	require.False(t, open)

	require.ErrorIs(
		t,
		pubsub.Unsubscribe(tradeId.String(), id),
		tradepubsub.ErrSubscriptionNotFound,
	)
	require.ErrorIs(
		t,
		pubsub.Unsubscribe("unknown", "sub0"),
		tradepubsub.ErrSubscriptionNotFound,
	)
}

func newTestEvent(tradeId uuid.UUID) ports.TradeEvent {
	return ports.TradeEvent{
		TradeId:   tradeId,
		OldPhase:  domain.PhaseNegotiated,
		NewPhase:  domain.PhaseDepositPublished,
		Timestamp: time.Now().Unix(),
	}
}

func receiveEvent(t *testing.T, events <-chan ports.TradeEvent) ports.TradeEvent {
	t.Helper()

	select {
	case event := <-events:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trade event")
		return ports.TradeEvent{}
	}
}

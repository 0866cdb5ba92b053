package ports

import (
	"github.com/google/uuid"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
)

// AnyTopic subscribes to phase events of every trade.
const AnyTopic = "*"

// TradeEvent notifies observers of a trade phase transition.
type TradeEvent struct {
	TradeId   uuid.UUID
	OldPhase  domain.Phase
	NewPhase  domain.Phase
	Failure   string
	Timestamp int64
}

// TradePubSub is the event stream of phase transitions exposed to callers
// of the core (UI, CLI or automation).
type TradePubSub interface {
	// Publish delivers the event to every subscriber of the trade's topic
	// and of AnyTopic.
	Publish(event TradeEvent)
	// Subscribe returns a subscription id and the channel events for the
	// topic are delivered on. The topic is a trade id string or AnyTopic.
	Subscribe(topic string) (string, <-chan TradeEvent)
	// Unsubscribe removes a subscription and closes its channel.
	Unsubscribe(topic, id string) error
}

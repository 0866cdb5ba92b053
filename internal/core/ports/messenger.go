package ports

import (
	"context"

	"github.com/google/uuid"
)

// TradeMessage is any protocol message exchanged between the two parties of
// a trade.
type TradeMessage interface {
	// Type returns the protocol message type tag.
	Type() string
	// TradeId returns the trade the message belongs to.
	TradeId() uuid.UUID
	// MessageId returns the unique id of this message instance.
	MessageId() string
}

// MessageHandler is invoked for every message delivered for a registered
// trade. Handlers are called sequentially per trade, in delivery order.
type MessageHandler func(msg TradeMessage)

// PeerMessenger is the reliable, ordered delivery channel towards the
// counterparty. The protocol engine only needs send/receive primitives and
// a way to resume a trade's sequencer when a message for it arrives.
type PeerMessenger interface {
	// SendMessage delivers msg to the designated counterparty.
	SendMessage(ctx context.Context, peerId string, msg TradeMessage) error
	// RegisterHandler routes every incoming message for the given trade to
	// the handler until deregistered.
	RegisterHandler(tradeId uuid.UUID, handler MessageHandler)
	// DeregisterHandler stops routing messages for the given trade.
	DeregisterHandler(tradeId uuid.UUID)
}

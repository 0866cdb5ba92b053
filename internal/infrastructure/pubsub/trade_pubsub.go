package tradepubsub

import (
	"errors"
	"sync"

	"github.com/thanhpk/randstr"

	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
)

// ErrSubscriptionNotFound ...
var ErrSubscriptionNotFound = errors.New("subscription not found")

const eventBufferSize = 16

type subscription struct {
	id string
	ch chan ports.TradeEvent
}

type tradePubSub struct {
	subsByTopic map[string][]subscription
	lock        *sync.RWMutex
}

// NewTradePubSub returns an in-process implementation of ports.TradePubSub.
// Events are delivered on buffered channels and dropped for subscribers
// that stopped draining, so a slow observer can never stall a trade.
func NewTradePubSub() ports.TradePubSub {
	return &tradePubSub{
		subsByTopic: make(map[string][]subscription),
		lock:        &sync.RWMutex{},
	}
}

func (p *tradePubSub) Publish(event ports.TradeEvent) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	topics := []string{event.TradeId.String(), ports.AnyTopic}
	for _, topic := range topics {
		for _, sub := range p.subsByTopic[topic] {
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
}

func (p *tradePubSub) Subscribe(topic string) (string, <-chan ports.TradeEvent) {
	p.lock.Lock()
	defer p.lock.Unlock()

	sub := subscription{
		id: randstr.Hex(8),
		ch: make(chan ports.TradeEvent, eventBufferSize),
	}
	p.subsByTopic[topic] = append(p.subsByTopic[topic], sub)
	return sub.id, sub.ch
}

func (p *tradePubSub) Unsubscribe(topic, id string) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	subs, ok := p.subsByTopic[topic]
	if !ok {
		return ErrSubscriptionNotFound
	}

	for i, sub := range subs {
		if sub.id == id {
			close(sub.ch)
			p.subsByTopic[topic] = append(subs[:i], subs[i+1:]...)
			if len(p.subsByTopic[topic]) <= 0 {
				delete(p.subsByTopic, topic)
			}
			return nil
		}
	}
	return ErrSubscriptionNotFound
}

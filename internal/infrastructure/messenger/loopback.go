package messenger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
	"github.com/p2pdex-network/escrow-daemon/pkg/circuitbreaker"
)

var (
	// ErrPeerNotFound ...
	ErrPeerNotFound = errors.New("peer not found on network")
)

// Network is an in-process message fabric connecting two (or more) trading
// peers. Every peer gets its own ports.PeerMessenger endpoint and messages
// sent to a peer id are delivered, in order, to the handler that peer
// registered for the message's trade. Messages arriving before the handler
// is registered are queued and flushed on registration, so a restarting
// peer never loses protocol messages.
type Network struct {
	endpoints map[string]*endpoint
	lock      *sync.RWMutex
}

// NewNetwork returns an empty loopback network.
func NewNetwork() *Network {
	return &Network{
		endpoints: make(map[string]*endpoint),
		lock:      &sync.RWMutex{},
	}
}

// Join creates (or returns) the messenger endpoint for the given peer id.
func (n *Network) Join(peerId string) ports.PeerMessenger {
	n.lock.Lock()
	defer n.lock.Unlock()

	if ep, ok := n.endpoints[peerId]; ok {
		return ep
	}
	ep := newEndpoint(peerId, n)
	n.endpoints[peerId] = ep
	return ep
}

func (n *Network) endpoint(peerId string) (*endpoint, bool) {
	n.lock.RLock()
	defer n.lock.RUnlock()
	ep, ok := n.endpoints[peerId]
	return ep, ok
}

// tradeQueue keeps per-trade delivery strictly ordered. Messages are
// appended under lock and drained by a single goroutine at a time, so
// handlers never run concurrently for the same trade.
type tradeQueue struct {
	handler  ports.MessageHandler
	pending  []ports.TradeMessage
	draining bool
}

type endpoint struct {
	peerId  string
	network *Network
	queues  map[uuid.UUID]*tradeQueue
	cb      *gobreaker.CircuitBreaker
	lock    *sync.Mutex
}

func newEndpoint(peerId string, network *Network) *endpoint {
	return &endpoint{
		peerId:  peerId,
		network: network,
		queues:  make(map[uuid.UUID]*tradeQueue),
		cb:      circuitbreaker.NewCircuitBreaker(fmt.Sprintf("peer %s", peerId)),
		lock:    &sync.Mutex{},
	}
}

func (e *endpoint) SendMessage(
	ctx context.Context, peerId string, msg ports.TradeMessage,
) error {
	_, err := e.cb.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		peer, ok := e.network.endpoint(peerId)
		if !ok {
			return nil, ErrPeerNotFound
		}
		peer.deliver(msg)
		return nil, nil
	})
	if err != nil {
		return err
	}

	log.Debugf(
		"peer %s sent %s for trade %s to %s",
		e.peerId, msg.Type(), msg.TradeId(), peerId,
	)
	return nil
}

func (e *endpoint) RegisterHandler(
	tradeId uuid.UUID, handler ports.MessageHandler,
) {
	e.lock.Lock()
	q := e.queue(tradeId)
	q.handler = handler
	e.lock.Unlock()

	e.drain(tradeId)
}

// DeregisterHandler detaches the trade handler. Messages already queued, or
// arriving afterwards, are kept and flushed to the next registered handler,
// so a peer restarting mid-trade does not lose them.
func (e *endpoint) DeregisterHandler(tradeId uuid.UUID) {
	e.lock.Lock()
	defer e.lock.Unlock()
	q, ok := e.queues[tradeId]
	if !ok {
		return
	}
	q.handler = nil
	if len(q.pending) <= 0 {
		delete(e.queues, tradeId)
	}
}

func (e *endpoint) deliver(msg ports.TradeMessage) {
	e.lock.Lock()
	q := e.queue(msg.TradeId())
	q.pending = append(q.pending, msg)
	e.lock.Unlock()

	e.drain(msg.TradeId())
}

// drain pops queued messages one by one and invokes the trade handler
// outside the endpoint lock. Only one drainer runs per trade.
func (e *endpoint) drain(tradeId uuid.UUID) {
	e.lock.Lock()
	q, ok := e.queues[tradeId]
	if !ok || q.handler == nil || q.draining {
		e.lock.Unlock()
		return
	}
	q.draining = true
	e.lock.Unlock()

	go func() {
		for {
			e.lock.Lock()
			q, ok := e.queues[tradeId]
			if !ok || q.handler == nil || len(q.pending) <= 0 {
				if ok {
					q.draining = false
				}
				e.lock.Unlock()
				return
			}
			msg := q.pending[0]
			q.pending = q.pending[1:]
			handler := q.handler
			e.lock.Unlock()

			handler(msg)
		}
	}()
}

func (e *endpoint) queue(tradeId uuid.UUID) *tradeQueue {
	q, ok := e.queues[tradeId]
	if !ok {
		q = &tradeQueue{}
		e.queues[tradeId] = q
	}
	return q
}

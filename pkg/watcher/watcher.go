package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
)

// EventType distinguishes the events emitted through the event channel
// during ledger observation.
type EventType int

const (
	// TxConfirmed is emitted once an observed transaction reaches the
	// confirmation threshold.
	TxConfirmed EventType = iota
)

// Event are emitted through a channel during observation.
type Event interface {
	Type() EventType
}

// TxConfirmedEvent reports that the observed transaction of a trade is
// irreversibly recorded on the ledger.
type TxConfirmedEvent struct {
	TradeId       uuid.UUID
	TxId          string
	Confirmations int
}

func (e TxConfirmedEvent) Type() EventType { return TxConfirmed }

// Observable represents a transaction being observed on the ledger on
// behalf of a trade.
type Observable struct {
	TradeId uuid.UUID
	TxId    string
}

// Key identifies the observable within the service.
func (o Observable) Key() string {
	return o.TradeId.String() + ":" + o.TxId
}

// Service is the interface for the ledger watcher.
type Service interface {
	Start()
	Stop()
	AddObservable(observable Observable)
	RemoveObservable(observable Observable)
	GetEventChannel() chan Event
}

type watcherService struct {
	ledgerSvc     ports.LedgerService
	interval      time.Duration
	confThreshold int
	rateLimiter   *rate.Limiter
	eventChan     chan Event
	quitChan      chan struct{}

	mtx         sync.RWMutex
	observables map[string]Observable
	started     bool
}

// Opts is the struct given to the NewService factory.
type Opts struct {
	LedgerSvc              ports.LedgerService
	Interval               time.Duration
	ConfirmationThreshold  int
	EventBufferSize        int
	RequestsPerSecondLimit int
}

// NewService returns a watcher polling the ledger at the given interval,
// emitting a TxConfirmedEvent for every observable whose transaction
// reaches the confirmation threshold. Polling is rate limited to avoid
// hammering the ledger backend when many trades are in flight.
func NewService(opts Opts) Service {
	interval := opts.Interval
	if interval <= 0 {
		interval = 1 * time.Second
	}
	threshold := opts.ConfirmationThreshold
	if threshold <= 0 {
		threshold = 1
	}
	bufSize := opts.EventBufferSize
	if bufSize <= 0 {
		bufSize = 32
	}
	rps := opts.RequestsPerSecondLimit
	if rps <= 0 {
		rps = 20
	}

	return &watcherService{
		ledgerSvc:     opts.LedgerSvc,
		interval:      interval,
		confThreshold: threshold,
		rateLimiter:   rate.NewLimiter(rate.Limit(rps), rps),
		eventChan:     make(chan Event, bufSize),
		quitChan:      make(chan struct{}),
		observables:   make(map[string]Observable),
	}
}

func (s *watcherService) Start() {
	s.mtx.Lock()
	if s.started {
		s.mtx.Unlock()
		return
	}
	s.started = true
	s.quitChan = make(chan struct{})
	quit := s.quitChan
	s.mtx.Unlock()

	go s.observe(quit)
}

func (s *watcherService) Stop() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.started {
		return
	}
	s.started = false
	close(s.quitChan)
}

func (s *watcherService) AddObservable(observable Observable) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.observables[observable.Key()] = observable
}

func (s *watcherService) RemoveObservable(observable Observable) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	delete(s.observables, observable.Key())
}

func (s *watcherService) GetEventChannel() chan Event {
	return s.eventChan
}

func (s *watcherService) observe(quit chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			eg := &errgroup.Group{}
			for _, observable := range s.snapshot() {
				if err := s.rateLimiter.Wait(context.Background()); err != nil {
					return
				}
				observable := observable
				eg.Go(func() error {
					s.checkConfirmations(observable)
					return nil
				})
			}
			eg.Wait()
		}
	}
}

func (s *watcherService) checkConfirmations(observable Observable) {
	confirmations, err := s.ledgerSvc.GetTxConfirmations(observable.TxId)
	if err != nil {
		log.WithError(err).WithField("tx", observable.TxId).
			Warn("watcher: failed to fetch tx confirmations")
		return
	}
	if confirmations < s.confThreshold {
		return
	}

	s.RemoveObservable(observable)
	s.eventChan <- TxConfirmedEvent{
		TradeId:       observable.TradeId,
		TxId:          observable.TxId,
		Confirmations: confirmations,
	}
}

func (s *watcherService) snapshot() []Observable {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	observables := make([]Observable, 0, len(s.observables))
	for _, o := range s.observables {
		observables = append(observables, o)
	}
	return observables
}

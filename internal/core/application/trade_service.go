package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
	"github.com/p2pdex-network/escrow-daemon/internal/core/protocol"
	"github.com/p2pdex-network/escrow-daemon/pkg/watcher"
)

var (
	// ErrServiceStopped ...
	ErrServiceStopped = errors.New("trade service is stopped")
)

// TradeService drives trade protocol sequences on behalf of one party. It
// owns one sequencer per active trade and serializes every interaction with
// it, so steps always observe a consistent trade state.
type TradeService interface {
	// Start begins processing ledger events for active trades.
	Start()
	// Stop halts event processing and cancels pending timeout timers.
	Stop()
	// StartTrade creates a trade for the accepted offer and launches its
	// protocol sequence. It returns the deterministic trade id.
	StartTrade(
		ctx context.Context, offer domain.Offer, role domain.Role, peerId string,
	) (uuid.UUID, error)
	// ResumeTrades reloads every non-terminal trade from storage and
	// re-enters its sequence at the position matching its phase.
	ResumeTrades(ctx context.Context) error
	// CancelTrade aborts a trade whose funds are not yet committed.
	CancelTrade(ctx context.Context, tradeId uuid.UUID) error
	// EscalateDispute hands a trade over to the arbitrator.
	EscalateDispute(ctx context.Context, tradeId uuid.UUID, reason string) error
	// GetTrade returns the current state of a trade.
	GetTrade(ctx context.Context, tradeId uuid.UUID) (*domain.Trade, error)
	// ListTrades returns every trade known to this daemon.
	ListTrades(ctx context.Context) ([]*domain.Trade, error)
	// SubscribeTradeEvents subscribes to phase transition events for a trade
	// id topic or ports.AnyTopic.
	SubscribeTradeEvents(topic string) (string, <-chan ports.TradeEvent)
	// UnsubscribeTradeEvents removes a subscription.
	UnsubscribeTradeEvents(topic, id string) error
}

type tradeService struct {
	tradeRepo   domain.TradeRepository
	walletSvc   ports.WalletService
	tradeWallet ports.TradeWallet
	ledgerSvc   ports.LedgerService
	messenger   ports.PeerMessenger
	pubsub      ports.TradePubSub
	watcherSvc  watcher.Service

	peerTimeout           time.Duration
	confirmationThreshold int

	runners map[uuid.UUID]*tradeRunner
	lock    *sync.Mutex
	started bool
	quit    chan struct{}
}

// NewTradeService returns the trade orchestrator wired to its collaborators.
func NewTradeService(
	tradeRepo domain.TradeRepository,
	walletSvc ports.WalletService,
	tradeWallet ports.TradeWallet,
	ledgerSvc ports.LedgerService,
	messenger ports.PeerMessenger,
	pubsub ports.TradePubSub,
	watcherSvc watcher.Service,
	peerTimeout time.Duration,
	confirmationThreshold int,
) TradeService {
	return &tradeService{
		tradeRepo:             tradeRepo,
		walletSvc:             walletSvc,
		tradeWallet:           tradeWallet,
		ledgerSvc:             ledgerSvc,
		messenger:             messenger,
		pubsub:                pubsub,
		watcherSvc:            watcherSvc,
		peerTimeout:           peerTimeout,
		confirmationThreshold: confirmationThreshold,
		runners:               make(map[uuid.UUID]*tradeRunner),
		lock:                  &sync.Mutex{},
		quit:                  make(chan struct{}),
	}
}

func (s *tradeService) Start() {
	s.lock.Lock()
	if s.started {
		s.lock.Unlock()
		return
	}
	s.started = true
	s.quit = make(chan struct{})
	quit := s.quit
	s.lock.Unlock()

	s.watcherSvc.Start()
	go s.listenToLedgerEvents(quit)
}

// Stop tears the runner set down. Trades stay persisted and their peer
// messages stay queued on the messenger, so a later Start plus ResumeTrades
// picks every live trade back up.
func (s *tradeService) Stop() {
	s.lock.Lock()
	if !s.started {
		s.lock.Unlock()
		return
	}
	s.started = false
	close(s.quit)
	runners := make([]*tradeRunner, 0, len(s.runners))
	for _, r := range s.runners {
		runners = append(runners, r)
	}
	s.runners = make(map[uuid.UUID]*tradeRunner)
	s.lock.Unlock()

	s.watcherSvc.Stop()
	for _, r := range runners {
		r.stopTimer()
		s.messenger.DeregisterHandler(r.rt.Trade.Id)
	}
}

func (s *tradeService) StartTrade(
	ctx context.Context, offer domain.Offer, role domain.Role, peerId string,
) (uuid.UUID, error) {
	s.lock.Lock()
	if !s.started {
		s.lock.Unlock()
		return uuid.Nil, ErrServiceStopped
	}
	s.lock.Unlock()

	trade, err := domain.NewTrade(offer, role, peerId)
	if err != nil {
		return uuid.Nil, err
	}

	if err := s.tradeRepo.AddTrade(ctx, trade); err != nil {
		return uuid.Nil, err
	}
	tradesStartedCounter.Inc()

	runner := s.newRunner(trade, 0)
	s.addRunner(runner)

	go runner.start(context.Background())

	log.WithFields(log.Fields{
		"trade": trade.Id,
		"offer": trade.OfferId,
		"role":  trade.Role.String(),
	}).Info("trade started")
	return trade.Id, nil
}

func (s *tradeService) ResumeTrades(ctx context.Context) error {
	trades, err := s.tradeRepo.GetNonTerminalTrades(ctx)
	if err != nil {
		return err
	}

	for _, trade := range trades {
		if trade.IsDisputed() {
			// disputed trades wait for the arbitrator, nothing to drive.
			continue
		}
		pos := protocol.ResumeIndex(trade.Role, trade.Phase)
		runner := s.newRunner(trade, pos)
		s.addRunner(runner)

		go runner.start(context.Background())

		log.WithFields(log.Fields{
			"trade":    trade.Id,
			"phase":    trade.Phase.String(),
			"position": pos,
		}).Info("trade resumed")
	}
	return nil
}

func (s *tradeService) CancelTrade(ctx context.Context, tradeId uuid.UUID) error {
	if runner, ok := s.runner(tradeId); ok {
		return runner.cancel(ctx)
	}

	return s.tradeRepo.UpdateTrade(
		ctx, tradeId, func(trade *domain.Trade) (*domain.Trade, error) {
			oldPhase := trade.Phase
			if err := trade.Cancel(); err != nil {
				return nil, err
			}
			s.publishEvent(trade, oldPhase)
			return trade, nil
		},
	)
}

func (s *tradeService) EscalateDispute(
	ctx context.Context, tradeId uuid.UUID, reason string,
) error {
	if runner, ok := s.runner(tradeId); ok {
		return runner.escalate(ctx, reason)
	}

	return s.tradeRepo.UpdateTrade(
		ctx, tradeId, func(trade *domain.Trade) (*domain.Trade, error) {
			oldPhase := trade.Phase
			if err := trade.EscalateDispute(reason); err != nil {
				return nil, err
			}
			tradesDisputedCounter.Inc()
			s.publishEvent(trade, oldPhase)
			return trade, nil
		},
	)
}

func (s *tradeService) GetTrade(
	ctx context.Context, tradeId uuid.UUID,
) (*domain.Trade, error) {
	return s.tradeRepo.GetTrade(ctx, tradeId)
}

func (s *tradeService) ListTrades(ctx context.Context) ([]*domain.Trade, error) {
	return s.tradeRepo.GetAllTrades(ctx)
}

func (s *tradeService) SubscribeTradeEvents(
	topic string,
) (string, <-chan ports.TradeEvent) {
	return s.pubsub.Subscribe(topic)
}

func (s *tradeService) UnsubscribeTradeEvents(topic, id string) error {
	return s.pubsub.Unsubscribe(topic, id)
}

func (s *tradeService) listenToLedgerEvents(quit chan struct{}) {
	for {
		select {
		case <-quit:
			return
		case event := <-s.watcherSvc.GetEventChannel():
			confirmed, ok := event.(watcher.TxConfirmedEvent)
			if !ok {
				continue
			}
			runner, found := s.runner(confirmed.TradeId)
			if !found {
				s.recoverRunner(context.Background(), confirmed.TxId)
				continue
			}
			msg := protocol.NewDepositConfirmedMessage(
				confirmed.TradeId, confirmed.TxId, confirmed.Confirmations,
			)
			runner.handleMessage(context.Background(), msg)
		}
	}
}

// recoverRunner rebuilds the runner of a live trade a ledger event refers
// to. Events and runners have independent lifecycles: a confirmation can be
// observed for a trade whose runner was torn down in between, typically a
// restart that has not resumed the trade yet. The rebuilt runner re-enters
// its sequence, which re-reads the confirmation count from the ledger, so
// the event itself does not need to be replayed.
func (s *tradeService) recoverRunner(ctx context.Context, txId string) {
	trade, err := s.tradeRepo.GetTradeWithDepositTxId(ctx, txId)
	if err != nil {
		if !errors.Is(err, domain.ErrTradeNotFound) {
			log.WithError(err).WithField("tx", txId).
				Warn("failed to look up trade for confirmed tx")
		}
		return
	}
	if trade.IsTerminal() || trade.IsDisputed() {
		return
	}

	pos := protocol.ResumeIndex(trade.Role, trade.Phase)
	runner := s.newRunner(trade, pos)
	s.addRunner(runner)

	go runner.start(context.Background())

	log.WithFields(log.Fields{
		"trade": trade.Id,
		"tx":    txId,
	}).Info("rebuilt runner for confirmed deposit")
}

func (s *tradeService) newRunner(trade *domain.Trade, pos int) *tradeRunner {
	runner := &tradeRunner{svc: s, lock: &sync.Mutex{}}
	rt := &protocol.Runtime{
		Trade: trade,
		Svc: protocol.Services{
			Wallet:      s.walletSvc,
			TradeWallet: s.tradeWallet,
			Ledger:      s.ledgerSvc,
			Messenger:   s.messenger,
		},
		PeerTimeout:           s.peerTimeout,
		ConfirmationThreshold: s.confirmationThreshold,
		OnPhaseChange: func(oldPhase, newPhase domain.Phase) {
			s.publishEvent(trade, oldPhase)
		},
	}
	runner.rt = rt
	runner.seq = protocol.NewSequencerAt(rt, protocol.SequenceForRole(trade.Role), pos)
	return runner
}

func (s *tradeService) addRunner(runner *tradeRunner) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.runners[runner.rt.Trade.Id] = runner
}

func (s *tradeService) runner(tradeId uuid.UUID) (*tradeRunner, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	runner, ok := s.runners[tradeId]
	return runner, ok
}

func (s *tradeService) removeRunner(tradeId uuid.UUID) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.runners, tradeId)
}

func (s *tradeService) publishEvent(trade *domain.Trade, oldPhase domain.Phase) {
	s.pubsub.Publish(ports.TradeEvent{
		TradeId:   trade.Id,
		OldPhase:  oldPhase,
		NewPhase:  trade.Phase,
		Failure:   trade.FailureReason,
		Timestamp: time.Now().Unix(),
	})
}

func (s *tradeService) persistTrade(ctx context.Context, trade *domain.Trade) {
	err := s.tradeRepo.UpdateTrade(
		ctx, trade.Id, func(_ *domain.Trade) (*domain.Trade, error) {
			return trade, nil
		},
	)
	if err != nil {
		log.WithError(err).WithField("trade", trade.Id).
			Error("failed to persist trade state")
	}
}

// tradeRunner owns the sequencer of one trade and serializes every way the
// sequence can progress: the initial run, counterparty messages, ledger
// confirmation events and timeout expiries.
type tradeRunner struct {
	svc  *tradeService
	rt   *protocol.Runtime
	seq  *protocol.Sequencer
	lock *sync.Mutex

	timer *time.Timer
	// deferred holds peer messages that arrived while the sequence was
	// waiting on the local ledger view, see handleMessage.
	deferred []ports.TradeMessage
}

// start runs the sequence for the first time. The message handler is
// registered only afterwards: the messenger queues incoming messages until
// then, so a fast counterparty cannot race the initial run.
func (r *tradeRunner) start(ctx context.Context) {
	r.lock.Lock()
	r.seq.Run(ctx)
	r.settle(ctx)
	settled := r.rt.Trade.IsTerminal() || r.rt.Trade.IsDisputed()
	r.lock.Unlock()

	if settled {
		return
	}
	r.svc.messenger.RegisterHandler(
		r.rt.Trade.Id, func(msg ports.TradeMessage) {
			r.handleMessage(context.Background(), msg)
		},
	)
}

func (r *tradeRunner) handleMessage(ctx context.Context, msg ports.TradeMessage) {
	r.lock.Lock()
	defer r.lock.Unlock()

	// A fast counterparty may already send its next message while this
	// side still waits for its own ledger view to confirm the deposit.
	// That is not a protocol violation: hold the message and replay it
	// once the confirmation lands.
	if awaiting, _ := r.seq.Awaiting(); awaiting == protocol.MsgTypeDepositConfirmed &&
		msg.Type() != protocol.MsgTypeDepositConfirmed {
		r.deferred = append(r.deferred, msg)
		return
	}

	r.cancelTimerLocked()
	r.seq.HandleMessage(ctx, msg)
	r.drainDeferredLocked(ctx)
	r.settle(ctx)
}

func (r *tradeRunner) handleTimeout(ctx context.Context) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if !r.seq.Suspended() {
		return
	}
	r.seq.HandleTimeout(ctx)
	r.drainDeferredLocked(ctx)
	r.settle(ctx)
}

// drainDeferredLocked replays held peer messages, in arrival order, as soon
// as the sequence is suspended on a peer message again.
func (r *tradeRunner) drainDeferredLocked(ctx context.Context) {
	for len(r.deferred) > 0 {
		awaiting, _ := r.seq.Awaiting()
		if !r.seq.Suspended() || awaiting == protocol.MsgTypeDepositConfirmed {
			return
		}
		msg := r.deferred[0]
		r.deferred = r.deferred[1:]
		r.seq.HandleMessage(ctx, msg)
	}
}

func (r *tradeRunner) cancel(ctx context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	trade := r.rt.Trade
	oldPhase := trade.Phase
	if err := trade.Cancel(); err != nil {
		return err
	}
	r.cancelTimerLocked()
	r.svc.publishEvent(trade, oldPhase)
	r.settle(ctx)
	return nil
}

func (r *tradeRunner) escalate(ctx context.Context, reason string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	step := protocol.EscalateDisputeStep{Reason: reason}
	if outcome := step.Run(ctx, r.rt); outcome.Kind == protocol.OutcomeFailed {
		return outcome.Err
	}
	tradesDisputedCounter.Inc()
	r.cancelTimerLocked()
	r.settle(ctx)
	return nil
}

// settle persists the trade, reconciles ledger observation and timeout
// timers with the sequencer state and tears the runner down once the trade
// settled. Must be called with the runner lock held.
func (r *tradeRunner) settle(ctx context.Context) {
	trade := r.rt.Trade
	r.svc.persistTrade(ctx, trade)

	if trade.IsTerminal() || trade.IsDisputed() {
		if trade.IsCompleted() {
			tradesCompletedCounter.Inc()
		} else if trade.IsFailed() {
			tradesFailedCounter.Inc()
		}
		r.cancelTimerLocked()
		r.svc.messenger.DeregisterHandler(trade.Id)
		r.svc.removeRunner(trade.Id)
		return
	}

	if !r.seq.Suspended() {
		r.cancelTimerLocked()
		return
	}

	awaiting, timeout := r.seq.Awaiting()
	if awaiting == protocol.MsgTypeDepositConfirmed && trade.Context.HasDepositTx() {
		r.svc.watcherSvc.AddObservable(watcher.Observable{
			TradeId: trade.Id,
			TxId:    trade.Context.DepositTxId,
		})
	}

	r.cancelTimerLocked()
	if timeout > 0 {
		r.timer = time.AfterFunc(timeout, func() {
			r.handleTimeout(context.Background())
		})
	}
}

func (r *tradeRunner) cancelTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *tradeRunner) stopTimer() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.cancelTimerLocked()
}

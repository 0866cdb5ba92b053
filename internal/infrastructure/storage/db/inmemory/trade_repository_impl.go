package inmemory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
)

var (
	// ErrTradeNotFound ...
	ErrTradeNotFound = domain.ErrTradeNotFound
	// ErrTradeAlreadyExists ...
	ErrTradeAlreadyExists = errors.New("trade with the same id already exists")
)

type tradeInmemoryStore struct {
	trades map[uuid.UUID]*domain.Trade
	locker *sync.Mutex
}

// NewTradeStore returns the backing store of an inmemory TradeRepository.
func NewTradeStore() *tradeInmemoryStore {
	return &tradeInmemoryStore{
		trades: make(map[uuid.UUID]*domain.Trade),
		locker: &sync.Mutex{},
	}
}

type tradeRepositoryImpl struct {
	store *tradeInmemoryStore
}

// NewTradeRepositoryImpl returns a new inmemory TradeRepository
// implementation.
func NewTradeRepositoryImpl(store *tradeInmemoryStore) domain.TradeRepository {
	return &tradeRepositoryImpl{store}
}

func (r tradeRepositoryImpl) AddTrade(_ context.Context, trade *domain.Trade) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.trades[trade.Id]; ok {
		return ErrTradeAlreadyExists
	}
	r.store.trades[trade.Id] = copyTrade(trade)
	return nil
}

func (r tradeRepositoryImpl) GetTrade(
	_ context.Context, tradeId uuid.UUID,
) (*domain.Trade, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	return r.getTrade(tradeId)
}

func (r tradeRepositoryImpl) GetAllTrades(_ context.Context) ([]*domain.Trade, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	trades := make([]*domain.Trade, 0, len(r.store.trades))
	for _, trade := range r.store.trades {
		trades = append(trades, copyTrade(trade))
	}
	return trades, nil
}

func (r tradeRepositoryImpl) GetNonTerminalTrades(
	ctx context.Context,
) ([]*domain.Trade, error) {
	allTrades, err := r.GetAllTrades(ctx)
	if err != nil {
		return nil, err
	}

	trades := make([]*domain.Trade, 0, len(allTrades))
	for _, trade := range allTrades {
		if !trade.IsTerminal() {
			trades = append(trades, trade)
		}
	}
	return trades, nil
}

func (r tradeRepositoryImpl) GetTradeWithDepositTxId(
	_ context.Context, txId string,
) (*domain.Trade, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	for _, trade := range r.store.trades {
		if trade.Context.DepositTxId == txId {
			return copyTrade(trade), nil
		}
	}
	return nil, ErrTradeNotFound
}

func (r tradeRepositoryImpl) UpdateTrade(
	_ context.Context,
	tradeId uuid.UUID,
	updateFn func(t *domain.Trade) (*domain.Trade, error),
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	currentTrade, err := r.getTrade(tradeId)
	if err != nil {
		return err
	}

	updatedTrade, err := updateFn(currentTrade)
	if err != nil {
		return err
	}

	r.store.trades[tradeId] = copyTrade(updatedTrade)
	return nil
}

func (r tradeRepositoryImpl) getTrade(tradeId uuid.UUID) (*domain.Trade, error) {
	trade, ok := r.store.trades[tradeId]
	if !ok {
		return nil, ErrTradeNotFound
	}
	return copyTrade(trade), nil
}

// copyTrade isolates callers from the stored instance, matching the
// semantics of a real database round trip.
func copyTrade(trade *domain.Trade) *domain.Trade {
	clone := *trade
	return &clone
}

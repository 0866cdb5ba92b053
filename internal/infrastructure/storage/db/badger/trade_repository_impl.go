package dbbadger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/p2pdex-network/escrow-daemon/internal/core/domain"
)

var (
	// ErrTradeNotFound ...
	ErrTradeNotFound = domain.ErrTradeNotFound
)

type tradeRepositoryImpl struct {
	db *DbManager
}

// NewTradeRepositoryImpl returns a badger-backed TradeRepository.
func NewTradeRepositoryImpl(db *DbManager) domain.TradeRepository {
	return tradeRepositoryImpl{db: db}
}

func (t tradeRepositoryImpl) AddTrade(
	_ context.Context, trade *domain.Trade,
) error {
	return t.db.store.Insert(trade.Id, *trade)
}

func (t tradeRepositoryImpl) GetTrade(
	_ context.Context, tradeId uuid.UUID,
) (*domain.Trade, error) {
	return t.getTrade(tradeId)
}

func (t tradeRepositoryImpl) GetAllTrades(
	_ context.Context,
) ([]*domain.Trade, error) {
	return t.findTrades(&badgerhold.Query{})
}

func (t tradeRepositoryImpl) GetNonTerminalTrades(
	_ context.Context,
) ([]*domain.Trade, error) {
	query := badgerhold.Where("Phase").
		Ne(domain.PhaseCompleted).
		And("Phase").Ne(domain.PhaseError)
	return t.findTrades(query)
}

func (t tradeRepositoryImpl) GetTradeWithDepositTxId(
	_ context.Context, txId string,
) (*domain.Trade, error) {
	query := badgerhold.Where("Context.DepositTxId").Eq(txId)
	trades, err := t.findTrades(query)
	if err != nil {
		return nil, err
	}
	if len(trades) <= 0 {
		return nil, ErrTradeNotFound
	}
	return trades[0], nil
}

func (t tradeRepositoryImpl) UpdateTrade(
	_ context.Context,
	tradeId uuid.UUID,
	updateFn func(trade *domain.Trade) (*domain.Trade, error),
) error {
	currentTrade, err := t.getTrade(tradeId)
	if err != nil {
		return err
	}

	updatedTrade, err := updateFn(currentTrade)
	if err != nil {
		return err
	}

	return t.db.store.Update(tradeId, *updatedTrade)
}

func (t tradeRepositoryImpl) getTrade(tradeId uuid.UUID) (*domain.Trade, error) {
	var trade domain.Trade
	if err := t.db.store.Get(tradeId, &trade); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return &trade, nil
}

func (t tradeRepositoryImpl) findTrades(
	query *badgerhold.Query,
) ([]*domain.Trade, error) {
	var found []domain.Trade
	if err := t.db.store.Find(&found, query); err != nil {
		return nil, err
	}

	trades := make([]*domain.Trade, 0, len(found))
	for i := range found {
		trades = append(trades, &found[i])
	}
	return trades, nil
}

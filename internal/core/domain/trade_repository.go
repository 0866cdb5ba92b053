package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrTradeNotFound is returned by every repository implementation when the
// requested trade does not exist.
var ErrTradeNotFound = errors.New("trade not found")

// TradeRepository is the abstraction for any kind of database intended to
// persist Trades.
type TradeRepository interface {
	// AddTrade persists a newly created trade. Adding a trade whose id is
	// already known is an error.
	AddTrade(ctx context.Context, trade *Trade) error
	// GetTrade returns the trade with the given id, if existing.
	GetTrade(ctx context.Context, tradeId uuid.UUID) (*Trade, error)
	// GetAllTrades returns all the trades stored in the repository.
	GetAllTrades(ctx context.Context) ([]*Trade, error)
	// GetNonTerminalTrades returns all trades that still need protocol
	// progress, used to resume sequencers after a restart.
	GetNonTerminalTrades(ctx context.Context) ([]*Trade, error)
	// GetTradeWithDepositTxId returns the trade whose fund-lock transaction
	// matches the given transaction id.
	GetTradeWithDepositTxId(ctx context.Context, txId string) (*Trade, error)
	// UpdateTrade allows to commit multiple changes to the same trade in a
	// transactional way.
	UpdateTrade(
		ctx context.Context,
		tradeId uuid.UUID,
		updateFn func(t *Trade) (*Trade, error),
	) error
}

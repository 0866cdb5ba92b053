package ledger

import (
	"bytes"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/btcsuite/btcd/wire"

	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
)

var (
	// ErrTxNotFound ...
	ErrTxNotFound = errors.New("transaction not found in ledger")
	// ErrInvalidTxFormat ...
	ErrInvalidTxFormat = errors.New("invalid transaction format")
)

type ledgerTx struct {
	txHex         string
	confirmations int
}

// InMemoryLedger is a simulated public ledger. Broadcast transactions start
// unconfirmed and gain confirmations when MineBlocks is called, mirroring
// how a regtest chain behaves.
type InMemoryLedger struct {
	txs  map[string]*ledgerTx
	lock *sync.RWMutex
}

// NewInMemoryLedger returns an empty ledger implementing ports.LedgerService.
func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		txs:  make(map[string]*ledgerTx),
		lock: &sync.RWMutex{},
	}
}

func (l *InMemoryLedger) BroadcastTransaction(txHex string) (string, error) {
	txId, err := txIdFromHex(txHex)
	if err != nil {
		return "", err
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	// re-broadcasting is a no-op, the ledger already knows the tx.
	if _, ok := l.txs[txId]; !ok {
		l.txs[txId] = &ledgerTx{txHex: txHex}
	}
	return txId, nil
}

func (l *InMemoryLedger) GetTxConfirmations(txId string) (int, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	tx, ok := l.txs[txId]
	if !ok {
		return 0, ErrTxNotFound
	}
	return tx.confirmations, nil
}

// GetTransaction returns the raw hex of a broadcast transaction.
func (l *InMemoryLedger) GetTransaction(txId string) (string, error) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	tx, ok := l.txs[txId]
	if !ok {
		return "", ErrTxNotFound
	}
	return tx.txHex, nil
}

// MineBlocks adds the given number of confirmations to every broadcast
// transaction.
func (l *InMemoryLedger) MineBlocks(numOfBlocks int) {
	l.lock.Lock()
	defer l.lock.Unlock()

	for _, tx := range l.txs {
		tx.confirmations += numOfBlocks
	}
}

func txIdFromHex(txHex string) (string, error) {
	buf, err := hex.DecodeString(txHex)
	if err != nil {
		return "", ErrInvalidTxFormat
	}
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(buf)); err != nil {
		return "", ErrInvalidTxFormat
	}
	return tx.TxHash().String(), nil
}

var _ ports.LedgerService = (*InMemoryLedger)(nil)

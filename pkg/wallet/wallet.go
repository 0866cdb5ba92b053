package wallet

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"

	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
)

var (
	// ErrNullSeed ...
	ErrNullSeed = errors.New("seed must be between 16 and 64 bytes")
	// ErrNullNetwork ...
	ErrNullNetwork = errors.New("network params must not be null")
	// ErrNullAmount ...
	ErrNullAmount = errors.New("amount must not be zero")
	// ErrAddressEntryNotFound is thrown when looking up a multisig key pair
	// for a trade that never allocated one.
	ErrAddressEntryNotFound = errors.New("address entry not found for trade")
	// ErrKeyPairMismatch is thrown when the declared public key does not
	// match the one recorded in the wallet for the trade.
	ErrKeyPairMismatch = errors.New("declared pubkey does not match the wallet address entry")
)

type entryKey struct {
	tradeId uuid.UUID
	purpose ports.Purpose
}

// Wallet is an in-process HD wallet backing the trade protocol's key needs.
// Address entries are derived deterministically per (trade, purpose) so that
// repeated lookups always return the same key material. Safe for concurrent
// use by multiple trades.
type Wallet struct {
	net       *chaincfg.Params
	masterKey *hdkeychain.ExtendedKey

	mtx     sync.RWMutex
	entries map[entryKey]ports.AddressEntry
}

// NewWalletOpts is the struct given to the NewWallet factory.
type NewWalletOpts struct {
	Seed []byte
	Net  *chaincfg.Params
}

func (o NewWalletOpts) validate() error {
	if len(o.Seed) < hdkeychain.MinSeedBytes || len(o.Seed) > hdkeychain.MaxSeedBytes {
		return ErrNullSeed
	}
	if o.Net == nil {
		return ErrNullNetwork
	}
	return nil
}

// NewWallet returns a wallet rooted at the master key derived from the
// given seed.
func NewWallet(opts NewWalletOpts) (*Wallet, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	masterKey, err := hdkeychain.NewMaster(opts.Seed, opts.Net)
	if err != nil {
		return nil, err
	}

	return &Wallet{
		net:       opts.Net,
		masterKey: masterKey,
		entries:   make(map[entryKey]ports.AddressEntry),
	}, nil
}

// GetOrCreateAddressEntry returns the address entry reserved for the trade
// and purpose, deriving it on first use. Idempotent per (tradeId, purpose).
func (w *Wallet) GetOrCreateAddressEntry(
	tradeId uuid.UUID, purpose ports.Purpose,
) (ports.AddressEntry, error) {
	key := entryKey{tradeId, purpose}

	w.mtx.Lock()
	defer w.mtx.Unlock()

	if entry, ok := w.entries[key]; ok {
		return entry, nil
	}

	childKey, err := w.deriveChildKey(tradeId, purpose)
	if err != nil {
		return ports.AddressEntry{}, err
	}
	pubKey, err := childKey.ECPubKey()
	if err != nil {
		return ports.AddressEntry{}, err
	}

	serializedPubKey := pubKey.SerializeCompressed()
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(serializedPubKey), w.net,
	)
	if err != nil {
		return ports.AddressEntry{}, err
	}

	entry := ports.AddressEntry{
		TradeId: tradeId,
		Purpose: purpose,
		Address: addr.EncodeAddress(),
		PubKey:  serializedPubKey,
	}
	w.entries[key] = entry
	return entry, nil
}

// GetMultiSigKeyPair returns the private key matching the multisig public
// key committed for the trade. It fails if the declared pubkey differs from
// the wallet's own record.
func (w *Wallet) GetMultiSigKeyPair(
	tradeId uuid.UUID, ownPubKey []byte,
) (*btcec.PrivateKey, error) {
	w.mtx.RLock()
	entry, ok := w.entries[entryKey{tradeId, ports.PurposeMultiSig}]
	w.mtx.RUnlock()
	if !ok {
		return nil, ErrAddressEntryNotFound
	}

	childKey, err := w.deriveChildKey(tradeId, ports.PurposeMultiSig)
	if err != nil {
		return nil, err
	}
	privKey, err := childKey.ECPrivKey()
	if err != nil {
		return nil, err
	}

	derivedPubKey := privKey.PubKey().SerializeCompressed()
	if !bytes.Equal(derivedPubKey, entry.PubKey) ||
		!bytes.Equal(derivedPubKey, ownPubKey) {
		return nil, ErrKeyPairMismatch
	}
	return privKey, nil
}

// SelectFundingOutpoint reserves a synthetic funding outpoint for the trade.
// A wallet backed by a real utxo set would run coin selection here; the
// outpoint is deterministic per trade so retries stay idempotent.
func (w *Wallet) SelectFundingOutpoint(
	tradeId uuid.UUID, amount uint64,
) (string, uint32, error) {
	if amount == 0 {
		return "", 0, ErrNullAmount
	}

	digest := sha256.Sum256(append([]byte("funding/"), tradeId[:]...))
	fundingHash, err := chainhash.NewHash(digest[:])
	if err != nil {
		return "", 0, err
	}
	return fundingHash.String(), 0, nil
}

// deriveChildKey maps (tradeId, purpose) onto a deterministic child index
// of the master key. The index is the first 31 bits of the tagged hash.
func (w *Wallet) deriveChildKey(
	tradeId uuid.UUID, purpose ports.Purpose,
) (*hdkeychain.ExtendedKey, error) {
	tag := append([]byte(purpose+"/"), tradeId[:]...)
	digest := sha256.Sum256(tag)
	index := binary.BigEndian.Uint32(digest[:4]) & (hdkeychain.HardenedKeyStart - 1)
	return w.masterKey.Derive(index)
}

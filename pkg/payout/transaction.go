package payout

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const txVersion = 2

// BuildDepositTxOpts is the struct given to the BuildDepositTx method.
type BuildDepositTxOpts struct {
	FundingTxId      string
	FundingVout      uint32
	Amount           uint64
	BuyerPubKey      []byte
	SellerPubKey     []byte
	ArbitratorPubKey []byte
}

func (o BuildDepositTxOpts) validate() error {
	if len(o.FundingTxId) == 0 {
		return ErrNullFundingOutpoint
	}
	if o.Amount == 0 {
		return ErrNullAmounts
	}
	if len(o.BuyerPubKey) == 0 || len(o.SellerPubKey) == 0 ||
		len(o.ArbitratorPubKey) == 0 {
		return ErrNullPubKey
	}
	return nil
}

// buildDepositTx builds the fund-lock transaction committing the total
// escrow amount into the 2-of-3 escrow output.
func buildDepositTx(opts BuildDepositTxOpts, net *chaincfg.Params) (*wire.MsgTx, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	redeemScript, err := MultiSigScript(
		opts.BuyerPubKey, opts.SellerPubKey, opts.ArbitratorPubKey, net,
	)
	if err != nil {
		return nil, err
	}
	pkScript, err := escrowPkScript(redeemScript, net)
	if err != nil {
		return nil, err
	}

	fundingHash, err := chainhash.NewHashFromStr(opts.FundingTxId)
	if err != nil {
		return nil, fmt.Errorf("invalid funding outpoint: %w", err)
	}

	tx := wire.NewMsgTx(txVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(fundingHash, opts.FundingVout), nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(opts.Amount), pkScript))
	return tx, nil
}

// PayoutTxOpts is the struct given to the payout building, signing and
// verification methods. Both parties must provide identical opts to derive
// the same transaction.
type PayoutTxOpts struct {
	DepositTxHex     string
	BuyerAmount      uint64
	SellerAmount     uint64
	BuyerAddress     string
	SellerAddress    string
	BuyerPubKey      []byte
	SellerPubKey     []byte
	ArbitratorPubKey []byte
}

func (o PayoutTxOpts) validate() error {
	if len(o.DepositTxHex) == 0 {
		return ErrNullDepositTx
	}
	if o.BuyerAmount == 0 || o.SellerAmount == 0 {
		return ErrNullAmounts
	}
	if len(o.BuyerAddress) == 0 || len(o.SellerAddress) == 0 {
		return ErrNullAddress
	}
	if len(o.BuyerPubKey) == 0 || len(o.SellerPubKey) == 0 ||
		len(o.ArbitratorPubKey) == 0 {
		return ErrNullPubKey
	}
	return nil
}

// payoutTemplate is the deterministic unsigned payout transaction together
// with everything needed to produce or verify a signature over it.
type payoutTemplate struct {
	tx           *wire.MsgTx
	redeemScript []byte
	pkScript     []byte
	escrowValue  int64
}

// buildPayoutTemplate rebuilds the unsigned payout transaction spending the
// escrow output of the fund-lock transaction. The buyer output always comes
// first, the seller output second; any fee model other than zero would have
// to be reflected in the agreed amounts.
func buildPayoutTemplate(opts PayoutTxOpts, net *chaincfg.Params) (*payoutTemplate, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	depositTx, err := deserializeTx(opts.DepositTxHex)
	if err != nil {
		return nil, fmt.Errorf("malformed deposit tx: %w", err)
	}

	redeemScript, err := MultiSigScript(
		opts.BuyerPubKey, opts.SellerPubKey, opts.ArbitratorPubKey, net,
	)
	if err != nil {
		return nil, err
	}
	pkScript, err := escrowPkScript(redeemScript, net)
	if err != nil {
		return nil, err
	}

	escrowIndex, escrowValue, err := findEscrowOutput(depositTx, pkScript)
	if err != nil {
		return nil, err
	}
	if int64(opts.BuyerAmount)+int64(opts.SellerAmount) != escrowValue {
		return nil, ErrPayoutAmountMismatch
	}

	buyerScript, err := payoutScript(opts.BuyerAddress, net)
	if err != nil {
		return nil, err
	}
	sellerScript, err := payoutScript(opts.SellerAddress, net)
	if err != nil {
		return nil, err
	}

	depositHash := depositTx.TxHash()
	tx := wire.NewMsgTx(txVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&depositHash, escrowIndex), nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(opts.BuyerAmount), buyerScript))
	tx.AddTxOut(wire.NewTxOut(int64(opts.SellerAmount), sellerScript))

	return &payoutTemplate{
		tx:           tx,
		redeemScript: redeemScript,
		pkScript:     pkScript,
		escrowValue:  escrowValue,
	}, nil
}

func (p *payoutTemplate) sigHashes() *txscript.TxSigHashes {
	fetcher := txscript.NewCannedPrevOutputFetcher(p.pkScript, p.escrowValue)
	return txscript.NewTxSigHashes(p.tx, fetcher)
}

func payoutScript(addr string, net *chaincfg.Params) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(addr, net)
	if err != nil {
		return nil, fmt.Errorf("invalid payout address '%s': %w", addr, err)
	}
	return txscript.PayToAddrScript(decoded)
}

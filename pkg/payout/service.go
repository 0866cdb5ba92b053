package payout

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/p2pdex-network/escrow-daemon/internal/core/ports"
)

// Service implements ports.TradeWallet on top of the btcd transaction and
// script primitives.
type Service struct {
	net *chaincfg.Params
}

// NewService returns a TradeWallet for the given chain parameters.
func NewService(net *chaincfg.Params) *Service {
	return &Service{net: net}
}

func (s *Service) BuildDepositTx(
	fundingTxId string, fundingVout uint32, amount uint64,
	buyerPubKey, sellerPubKey, arbitratorPubKey []byte,
) (string, string, error) {
	tx, err := buildDepositTx(BuildDepositTxOpts{
		FundingTxId:      fundingTxId,
		FundingVout:      fundingVout,
		Amount:           amount,
		BuyerPubKey:      buyerPubKey,
		SellerPubKey:     sellerPubKey,
		ArbitratorPubKey: arbitratorPubKey,
	}, s.net)
	if err != nil {
		return "", "", err
	}

	txHex, err := serializeTx(tx)
	if err != nil {
		return "", "", err
	}
	return tx.TxHash().String(), txHex, nil
}

func (s *Service) SignPayout(
	desc ports.PayoutDescriptor, key *btcec.PrivateKey,
) ([]byte, error) {
	if key == nil {
		return nil, ErrNullSignature
	}

	template, err := buildPayoutTemplate(payoutOpts(desc), s.net)
	if err != nil {
		return nil, err
	}

	return txscript.RawTxInWitnessSignature(
		template.tx, template.sigHashes(), 0, template.escrowValue,
		template.redeemScript, txscript.SigHashAll, key,
	)
}

func (s *Service) VerifyPayoutSignature(
	desc ports.PayoutDescriptor, sig, signerPubKey []byte,
) error {
	// RawTxInWitnessSignature appends the hash type byte to the DER
	// signature, strip it before parsing.
	if len(sig) < 2 {
		return ErrNullSignature
	}

	template, err := buildPayoutTemplate(payoutOpts(desc), s.net)
	if err != nil {
		return err
	}

	sigHash, err := txscript.CalcWitnessSigHash(
		template.redeemScript, template.sigHashes(), txscript.SigHashAll,
		template.tx, 0, template.escrowValue,
	)
	if err != nil {
		return err
	}

	parsedSig, err := ecdsa.ParseDERSignature(sig[:len(sig)-1])
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	pubKey, err := btcec.ParsePubKey(signerPubKey)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}
	if !parsedSig.Verify(sigHash, pubKey) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *Service) AssemblePayoutTx(
	desc ports.PayoutDescriptor, buyerSig, sellerSig []byte,
) (string, string, error) {
	if len(buyerSig) == 0 || len(sellerSig) == 0 {
		return "", "", ErrNullSignature
	}

	template, err := buildPayoutTemplate(payoutOpts(desc), s.net)
	if err != nil {
		return "", "", err
	}

	// CHECKMULTISIG consumes an extra dummy stack element; signatures must
	// appear in redeem script key order (buyer, seller).
	template.tx.TxIn[0].Witness = wire.TxWitness{
		nil, buyerSig, sellerSig, template.redeemScript,
	}

	txHex, err := serializeTx(template.tx)
	if err != nil {
		return "", "", err
	}
	return template.tx.TxHash().String(), txHex, nil
}

func payoutOpts(desc ports.PayoutDescriptor) PayoutTxOpts {
	return PayoutTxOpts{
		DepositTxHex:     desc.DepositTxHex,
		BuyerAmount:      desc.BuyerAmount,
		SellerAmount:     desc.SellerAmount,
		BuyerAddress:     desc.BuyerAddress,
		SellerAddress:    desc.SellerAddress,
		BuyerPubKey:      desc.BuyerPubKey,
		SellerPubKey:     desc.SellerPubKey,
		ArbitratorPubKey: desc.ArbitratorPubKey,
	}
}

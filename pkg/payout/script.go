package payout

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// MultiSigScript returns the canonical 2-of-3 redeem script of a trade
// escrow. The key order is fixed (buyer, seller, arbitrator) so that both
// parties derive a bit-identical script without coordination.
func MultiSigScript(
	buyerPubKey, sellerPubKey, arbitratorPubKey []byte,
	net *chaincfg.Params,
) ([]byte, error) {
	if len(buyerPubKey) == 0 || len(sellerPubKey) == 0 || len(arbitratorPubKey) == 0 {
		return nil, ErrNullPubKey
	}

	keys := make([]*btcutil.AddressPubKey, 0, 3)
	for _, pubKey := range [][]byte{buyerPubKey, sellerPubKey, arbitratorPubKey} {
		addr, err := btcutil.NewAddressPubKey(pubKey, net)
		if err != nil {
			return nil, err
		}
		keys = append(keys, addr)
	}

	return txscript.MultiSigScript(keys, 2)
}

// EscrowAddress returns the pay-to-witness-script-hash address of the given
// redeem script.
func EscrowAddress(
	redeemScript []byte, net *chaincfg.Params,
) (btcutil.Address, error) {
	scriptHash := sha256.Sum256(redeemScript)
	return btcutil.NewAddressWitnessScriptHash(scriptHash[:], net)
}

// escrowPkScript returns the output script locking funds into the escrow of
// the given redeem script.
func escrowPkScript(redeemScript []byte, net *chaincfg.Params) ([]byte, error) {
	addr, err := EscrowAddress(redeemScript, net)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(addr)
}

// findEscrowOutput returns the index and value of the output of tx paying
// the given escrow script.
func findEscrowOutput(tx *wire.MsgTx, pkScript []byte) (uint32, int64, error) {
	for i, out := range tx.TxOut {
		if bytes.Equal(out.PkScript, pkScript) {
			return uint32(i), out.Value, nil
		}
	}
	return 0, 0, ErrEscrowOutputNotFound
}

func deserializeTx(txHex string) (*wire.MsgTx, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return nil, err
	}
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return tx, nil
}

func serializeTx(tx *wire.MsgTx) (string, error) {
	buf := bytes.NewBuffer(make([]byte, 0, tx.SerializeSize()))
	if err := tx.Serialize(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

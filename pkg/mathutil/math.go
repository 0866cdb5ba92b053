package mathutil

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// TenThousands ...
var TenThousands = uint64(10000)

// PayoutSplit computes the agreed payout split of a trade escrow: the
// seller's security deposit alone returns to the seller, while the buyer
// receives their deposit back plus the full purchased amount. The escrowed
// principal effectively transfers from the seller's stake to the buyer's
// payout, since the seller is paid by a mechanism outside this transaction.
func PayoutSplit(
	tradeAmount, buyerDeposit, sellerDeposit uint64,
) (buyerPayout, sellerPayout uint64) {
	buyerDecimal := decimal.NewFromBigInt(new(big.Int).SetUint64(buyerDeposit), 0)
	amountDecimal := decimal.NewFromBigInt(new(big.Int).SetUint64(tradeAmount), 0)

	buyerPayout = buyerDecimal.Add(amountDecimal).BigInt().Uint64()
	sellerPayout = sellerDeposit
	return
}

// ConservesFunds returns whether a payout split consumes the escrowed total
// exactly, ie. buyerPayout + sellerPayout == tradeAmount + both deposits.
func ConservesFunds(
	buyerPayout, sellerPayout, tradeAmount, buyerDeposit, sellerDeposit uint64,
) bool {
	payouts := sumDecimal(buyerPayout, sellerPayout)
	escrowed := sumDecimal(tradeAmount, buyerDeposit, sellerDeposit)
	return payouts.Equal(escrowed)
}

// SecurityDeposit calculates the collateral for a trade amount given a
// deposit ratio expressed in basis points (ie. 15% = 1500).
func SecurityDeposit(tradeAmount, ratioAsBasisPoint uint64) uint64 {
	ratioDecimal := decimal.NewFromBigInt(new(big.Int).SetUint64(ratioAsBasisPoint), 0)
	amountDecimal := decimal.NewFromBigInt(new(big.Int).SetUint64(tradeAmount), 0)
	tenThousands := decimal.NewFromBigInt(new(big.Int).SetUint64(TenThousands), 0)

	return amountDecimal.Mul(ratioDecimal).Div(tenThousands).BigInt().Uint64()
}

func sumDecimal(values ...uint64) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0))
	}
	return total
}

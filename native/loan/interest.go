package loan

import "math/big"

var basisPoints = big.NewInt(10_000)

// secondsPerYear is the annualization denominator for interest accrual.
const secondsPerYear = 365 * 86_400

// FeeAmount computes the protocol fee extracted from the borrower's
// disbursement: floor(principal * feeBps / 10000). Division happens after the
// full product to avoid precision loss.
func FeeAmount(principal *big.Int, feeBps uint64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || feeBps == 0 {
		return big.NewInt(0)
	}
	fee := new(big.Int).Mul(principal, new(big.Int).SetUint64(feeBps))
	return fee.Quo(fee, basisPoints)
}

// InterestAccrued computes the pro-rata interest owed after elapsed seconds:
// floor(principal * rateBps * elapsed / (10000 * secondsPerYear)). The full
// triple product is formed before the single truncating division, so the
// result is exact for any principal within the supported range.
func InterestAccrued(principal *big.Int, rateBps uint64, elapsed int64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || rateBps == 0 || elapsed <= 0 {
		return big.NewInt(0)
	}
	interest := new(big.Int).Mul(principal, new(big.Int).SetUint64(rateBps))
	interest.Mul(interest, big.NewInt(elapsed))
	denominator := new(big.Int).Mul(basisPoints, big.NewInt(secondsPerYear))
	return interest.Quo(interest, denominator)
}

// TotalRepayment returns principal plus the pro-rata interest for elapsed
// seconds. The fee is deliberately absent: it was already deducted from the
// borrower's disbursement at acceptance time.
func TotalRepayment(principal *big.Int, rateBps uint64, elapsed int64) *big.Int {
	if principal == nil || principal.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Add(principal, InterestAccrued(principal, rateBps, elapsed))
}

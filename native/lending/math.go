package lending

import (
	"math/big"

	"nftlend/native/decimal"
)

// ticksPerYear converts the annual interest rate into a per-tick rate. One
// ledger tick corresponds to one second of wall time.
const ticksPerYear = 31_536_000

// compoundInterest returns principal compounded over elapsed ticks at the
// annual rate. The rate is a percentage scaled by 1000.
func compoundInterest(principal *big.Int, rate uint32, elapsed uint64) (decimal.Decimal, error) {
	annual := decimal.FromPercent3dp(rate)
	perTick, err := annual.DivUint(ticksPerYear)
	if err != nil {
		return decimal.Zero(), err
	}
	growth := decimal.One().Add(perTick).Pow(elapsed)
	return growth.Mul(decimal.FromBig(principal)), nil
}

// uncompoundedInterest returns principal plus one full year of simple
// interest. Used at request time where full compounding is unnecessary; the
// periodic refresh actor reconciles any divergence on live loans.
func uncompoundedInterest(principal *big.Int, rate uint32) decimal.Decimal {
	annual := decimal.FromPercent3dp(rate)
	base := decimal.FromBig(principal)
	return base.Add(base.Mul(annual))
}

// maxAmountAllowed returns the borrow ceiling for the collateral worth at the
// configured loan-to-value ratio.
func maxAmountAllowed(collateralWorth *big.Int, ltv uint32) decimal.Decimal {
	return decimal.FromBig(collateralWorth).Mul(decimal.FromPercent3dp(ltv))
}

// calculateFees returns the platform fee due on the amount at the configured
// fee percentage.
func calculateFees(amount *big.Int, feePercentage uint32) decimal.Decimal {
	return decimal.FromBig(amount).Mul(decimal.FromPercent3dp(feePercentage))
}

package escrow

import (
	"math/bits"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

// payout computes a winner's total payout: their stake back plus a pro-rata
// share of the losing pool, stake * losingPool / winningPool in integer math.
// Truncation rounds each share down, so the sum over all winners never
// exceeds the escrow balance; the remainder stays in escrow.
func payout(stake, winningPool, losingPool uint64) (uint64, error) {
	if winningPool == 0 {
		return 0, domain.ErrNoWinners
	}

	// The multiply must fit in u64 before dividing, matching the on-chain
	// checked arithmetic.
	hi, lo := bits.Mul64(stake, losingPool)
	if hi != 0 {
		return 0, domain.ErrMathOverflow
	}
	share := lo / winningPool

	total, carry := bits.Add64(stake, share, 0)
	if carry != 0 {
		return 0, domain.ErrMathOverflow
	}
	return total, nil
}

// checkedAdd adds two u64 stake amounts, failing instead of wrapping.
func checkedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, domain.ErrMathOverflow
	}
	return sum, nil
}

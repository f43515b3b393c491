package escrow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

func TestPayoutProRata(t *testing.T) {
	// Winner staked 100 of a 300 winning pool; losing pool is 100.
	// share = 100 * 100 / 300 = 33 (truncated), payout = 133.
	got, err := payout(100, 300, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(133), got)
}

func TestPayoutSoleWinnerTakesWholeLosingPool(t *testing.T) {
	got, err := payout(250, 250, 1_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_250), got)
}

func TestPayoutEmptyLosingPoolReturnsStake(t *testing.T) {
	got, err := payout(40, 90, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), got)
}

func TestPayoutNoWinners(t *testing.T) {
	_, err := payout(0, 0, 500)
	assert.ErrorIs(t, err, domain.ErrNoWinners)
}

func TestPayoutOverflow(t *testing.T) {
	_, err := payout(math.MaxUint64, math.MaxUint64, math.MaxUint64)
	assert.ErrorIs(t, err, domain.ErrMathOverflow)
}

func TestPayoutNeverOverdistributes(t *testing.T) {
	// Truncation rounds every share down, so the sum of all payouts must not
	// exceed the total pool.
	stakes := []uint64{1, 2, 3, 7, 100, 999}
	var winning uint64
	for _, s := range stakes {
		winning += s
	}
	const losing = uint64(1_000_003)

	var distributed uint64
	for _, s := range stakes {
		p, err := payout(s, winning, losing)
		require.NoError(t, err)
		distributed += p
	}
	assert.LessOrEqual(t, distributed, winning+losing)
}

func TestCheckedAdd(t *testing.T) {
	sum, err := checkedAdd(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sum)

	_, err = checkedAdd(math.MaxUint64, 1)
	assert.ErrorIs(t, err, domain.ErrMathOverflow)
}

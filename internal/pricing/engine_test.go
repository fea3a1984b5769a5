package pricing

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictarena/ledger/internal/domain"
)

func opts(liquidity ...float64) []domain.Option {
	out := make([]domain.Option, len(liquidity))
	for i, l := range liquidity {
		out[i] = domain.Option{ID: string(rune('a' + i)), MarketID: "m1", Liquidity: l}
	}
	return out
}

func TestProbabilities_BinaryEven(t *testing.T) {
	probs, err := Probabilities(opts(100, 100))
	require.NoError(t, err)

	assert.InDelta(t, 0.5, probs["a"], 1e-9)
	assert.InDelta(t, 0.5, probs["b"], 1e-9)
}

func TestProbabilities_ThinnerPoolFavoursOthers(t *testing.T) {
	// A thin pool on "a" means the market currently weighs "a" heavily.
	probs, err := Probabilities(opts(50, 200))
	require.NoError(t, err)

	assert.InDelta(t, 0.8, probs["a"], 1e-9)
	assert.InDelta(t, 0.2, probs["b"], 1e-9)
}

func TestProbabilities_SumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		n := 2 + rng.Intn(6)
		liqs := make([]float64, n)
		for j := range liqs {
			liqs[j] = 1 + rng.Float64()*5000
		}

		probs, err := Probabilities(opts(liqs...))
		require.NoError(t, err)

		var sum float64
		for _, p := range probs {
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestProbabilities_RejectsNonPositiveLiquidity(t *testing.T) {
	_, err := Probabilities(opts(100, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Probabilities(opts(-5, 100))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Probabilities(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewQuote_WorkedExample(t *testing.T) {
	// Binary market, both pools at 100: p = 0.5 each. A 50-point bet at a 5%
	// fee pays fee=2, netStake=48, payout=floor(48/0.5)=96.
	q, err := NewQuote(opts(100, 100), "a", 50, 0.05)
	require.NoError(t, err)

	assert.Equal(t, int64(2), q.Fee)
	assert.Equal(t, int64(48), q.NetStake)
	assert.InDelta(t, 0.5, q.Probability, 1e-9)
	assert.Equal(t, int64(96), q.Payout)
}

func TestNewQuote_ZeroFee(t *testing.T) {
	q, err := NewQuote(opts(100, 300), "b", 90, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(0), q.Fee)
	assert.Equal(t, int64(90), q.NetStake)
	assert.InDelta(t, 0.25, q.Probability, 1e-9)
	assert.Equal(t, int64(360), q.Payout)
}

func TestNewQuote_InvalidInputs(t *testing.T) {
	_, err := NewQuote(opts(100, 100), "a", 0, 0.05)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewQuote(opts(100, 100), "a", -10, 0.05)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewQuote(opts(100, 100), "missing", 10, 0.05)
	assert.ErrorIs(t, err, domain.ErrInvalidOption)

	_, err = NewQuote(opts(100, 100), "a", 10, 1.0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewQuote_PayoutNeverBelowNetStakeForFavourite(t *testing.T) {
	// p <= 1 always, so payout >= netStake.
	q, err := NewQuote(opts(10, 1000, 1000), "a", 100, 0.02)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, q.Payout, q.NetStake)
}

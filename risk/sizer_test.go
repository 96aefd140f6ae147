package risk

import (
	"math"
	"testing"

	"github.com/rustyeddy/signalbot/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fxSymbol() market.Symbol {
	return market.Symbol{
		Name:       "EURUSD",
		Bid:        1.1000,
		Ask:        1.1002,
		PipSize:    0.0001,
		PipValue:   10,
		VolumeStep: 0.01,
		VolumeMin:  0.01,
	}
}

func TestSplitThreeLegs(t *testing.T) {
	t.Parallel()

	s, err := Split(100, 20, fxSymbol(), []float64{30, 30, 40})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, s.Total, 1e-9)
	assert.InDeltaSlice(t, []float64{0.15, 0.15, 0.2}, s.Legs, 1e-9)
	assert.InDelta(t, 0.5, s.Sum(), 1e-9)
}

func TestSplitTwoLegsRenormalizes(t *testing.T) {
	t.Parallel()

	s, err := Split(100, 20, fxSymbol(), []float64{30, 30})
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0.25, 0.25}, s.Legs, 1e-9)
}

func TestSplitFloorsMayExceedTotal(t *testing.T) {
	t.Parallel()

	// 2 / (100 * 10) = 0.002 -> normalized 0 -> floored 0.01
	s, err := Split(2, 100, fxSymbol(), []float64{30, 30, 40})
	require.NoError(t, err)

	assert.InDelta(t, 0.01, s.Total, 1e-9)
	assert.InDeltaSlice(t, []float64{0.01, 0.01, 0.01}, s.Legs, 1e-9)
	assert.Greater(t, s.Sum(), s.Total)
}

func TestSplitErrors(t *testing.T) {
	t.Parallel()

	sym := fxSymbol()
	_, err := Split(100, 0, sym, []float64{50, 50})
	assert.ErrorIs(t, err, ErrInvalidStop)

	_, err = Split(0, 20, sym, []float64{50, 50})
	assert.ErrorIs(t, err, ErrNoRisk)

	_, err = Split(100, 20, sym, []float64{100})
	assert.ErrorIs(t, err, ErrLegCount)

	_, err = Split(100, 20, sym, []float64{50, 0})
	assert.ErrorIs(t, err, ErrInvalidPercents)

	sym.PipValue = 0
	_, err = Split(100, 20, sym, []float64{50, 50})
	assert.ErrorIs(t, err, ErrInvalidSymbol)
}

func TestSplitRoundedLegsTrackTotal(t *testing.T) {
	t.Parallel()

	sym := fxSymbol()
	for risk := 5.0; risk < 2000; risk += 13.7 {
		for stop := 3.0; stop < 120; stop += 7.3 {
			for _, pcts := range [][]float64{{30, 30, 40}, {50, 50}, {25, 35}} {
				s, err := Split(risk, stop, sym, pcts)
				require.NoError(t, err)

				var raw, rounded float64
				for i := range s.Raw {
					raw += s.Raw[i]
					rounded += s.Rounded[i]
				}
				assert.InDelta(t, s.Total, raw, 1e-9)
				// Each leg rounds by at most half a step.
				tol := float64(len(pcts))*sym.VolumeStep/2 + 1e-9
				assert.LessOrEqual(t, math.Abs(rounded-s.Total), tol)
			}
		}
	}
}

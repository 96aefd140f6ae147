package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"LONG", Long, false},
		{"long", Long, false},
		{"Buy", Long, false},
		{" SHORT ", Short, false},
		{"sell", Short, false},
		{"flat", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDirection(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownDirection)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDirectionHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Buy", Long.String())
	assert.Equal(t, "Sell", Short.String())
	assert.Equal(t, Short, Long.Opposite())
	assert.Equal(t, Long, Short.Opposite())
	assert.Equal(t, 1.0, Long.Sign())
	assert.Equal(t, -1.0, Short.Sign())
	assert.False(t, Direction(0).Valid())
}

func TestSymbolSides(t *testing.T) {
	t.Parallel()

	s := Symbol{Bid: 1.1000, Ask: 1.1002, PipSize: 0.0001}

	assert.Equal(t, 1.1002, s.EntryPrice(Long))
	assert.Equal(t, 1.1000, s.EntryPrice(Short))
	assert.Equal(t, 1.1000, s.ExitPrice(Long))
	assert.Equal(t, 1.1002, s.ExitPrice(Short))
	assert.InDelta(t, 2.0, s.ToPips(s.Spread()), 1e-9)
	assert.InDelta(t, 0.0020, s.FromPips(20), 1e-12)
}

func TestNormalizeVolume(t *testing.T) {
	t.Parallel()

	s := Symbol{VolumeStep: 0.01, VolumeMin: 0.01}

	assert.Equal(t, 0.5, s.NormalizeVolume(0.499))
	assert.Equal(t, 0.15, s.NormalizeVolume(0.151))
	assert.Equal(t, 0.0, s.NormalizeVolume(0.004))
	assert.Equal(t, 0.01, s.FloorVolume(0))
	assert.Equal(t, 0.3, s.FloorVolume(0.3))

	noStep := Symbol{}
	assert.Equal(t, 0.123, noStep.NormalizeVolume(0.123))
}

func TestInstrumentSymbol(t *testing.T) {
	t.Parallel()

	meta, err := LookupInstrument("eur_usd")
	require.NoError(t, err)

	s := meta.Symbol(1.1000, 1.1002)
	assert.Equal(t, "EURUSD", s.Name)
	assert.InDelta(t, 0.0001, s.PipSize, 1e-12)
	assert.InDelta(t, 10.0, s.PipValue, 1e-9)

	jpy, err := LookupInstrument("USD/JPY")
	require.NoError(t, err)
	js := jpy.Symbol(150.00, 150.00)
	assert.InDelta(t, 1000.0/150.0, js.PipValue, 1e-9)

	_, err = LookupInstrument("XXXYYY")
	assert.Error(t, err)
}

package sim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVTicks(t *testing.T) {
	t.Parallel()

	in := `time,instrument,bid,ask
2025-01-06T15:00:00Z,US30_USD,39000,39002

2025-01-06T15:00:05.5Z,US30_USD,39010.5,39012.5,extra,cols
,US30_USD,1,2
2025-01-06T15:00:10Z,US30_USD,39020,39022
`
	f := NewCSVTicks(strings.NewReader(in))

	var got []Tick
	for {
		tk, ok, err := f.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, tk)
	}

	require.Len(t, got, 3)
	assert.Equal(t, "US30_USD", got[0].Instrument)
	assert.Equal(t, 39000.0, got[0].Bid)
	assert.Equal(t, 39002.0, got[0].Ask)
	assert.Equal(t, 500_000_000, got[1].Time.Nanosecond())
	assert.Equal(t, 39010.5, got[1].Bid)
	assert.Equal(t, 39022.0, got[2].Ask)
}

func TestCSVTicksErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bad time", "yesterday,US30,1,2\n", "bad time"},
		{"bad bid", "2025-01-06T15:00:00Z,US30,x,2\n", "bad bid"},
		{"bad ask", "2025-01-06T15:00:00Z,US30,1,y\n", "bad ask"},
		{"crossed", "2025-01-06T15:00:00Z,US30,2,1\n", "bad quote"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := NewCSVTicks(strings.NewReader(tt.in)).Next()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

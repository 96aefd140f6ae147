package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrice(t *testing.T) {
	t.Parallel()

	a := Price(39000)
	b := Price(39000)

	assert.Equal(t, 39000.0, *a)
	assert.NotSame(t, a, b)

	*a = 1
	assert.Equal(t, 39000.0, *b)
}

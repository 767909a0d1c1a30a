package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypistDelayBounds(t *testing.T) {
	ty := newTypist(1)
	for i := 0; i < 500; i++ {
		d := ty.keyDelay('a', 'b')
		assert.GreaterOrEqual(t, d, ty.minDelay)
		assert.LessOrEqual(t, d, ty.maxDelay)
	}
}

func TestTypistCommonDigraphsAreFaster(t *testing.T) {
	samples := 2000
	var digraph, plain time.Duration
	a := newTypist(42)
	b := newTypist(42)
	for i := 0; i < samples; i++ {
		digraph += a.keyDelay('t', 'h')
		plain += b.keyDelay('q', 'z')
	}
	assert.Less(t, digraph/time.Duration(samples), plain/time.Duration(samples))
}

func TestTypistDeterministicWithSeed(t *testing.T) {
	a := newTypist(7)
	b := newTypist(7)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.keyDelay('a', 'b'), b.keyDelay('a', 'b'))
	}
}

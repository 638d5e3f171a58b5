package bench

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillPattern(t *testing.T) {
	a := make([]byte, 100) // not a multiple of 8
	b := make([]byte, 100)
	c := make([]byte, 100)

	fillPattern(a, 1, 1)
	fillPattern(b, 1, 1)
	fillPattern(c, 1, 2)

	assert.Equal(t, a, b, "deterministic")
	assert.NotEqual(t, a, c, "version changes the pattern")
	assert.NotEqual(t, make([]byte, 100), a)
}

package station

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVariationKnownStation(t *testing.T) {
	v := Variation("KDEN", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if assert.NotNil(t, v) {
		assert.Greater(t, *v, 0.0)
	}
}

func TestVariationUnknownStation(t *testing.T) {
	v := Variation("ZZZZ", time.Now())
	assert.Nil(t, v)
}

func TestLookup(t *testing.T) {
	_, ok := Lookup("KDEN")
	assert.True(t, ok)
	_, ok = Lookup("ZZZZ")
	assert.False(t, ok)
}

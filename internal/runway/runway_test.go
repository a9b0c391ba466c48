package runway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadingFromDesignator(t *testing.T) {
	cases := map[string]int{
		"26":  260,
		"08":  80,
		"17L": 170,
		"36R": 360 % 360,
		"9":   90,
	}
	for designator, want := range cases {
		got, ok := HeadingFromDesignator(designator)
		require.True(t, ok, designator)
		assert.Equal(t, want, got, designator)
	}

	_, ok := HeadingFromDesignator("")
	assert.False(t, ok)
	_, ok = HeadingFromDesignator("LR")
	assert.False(t, ok)
}

func TestSelectFavorsLowerCrosswind(t *testing.T) {
	sel, err := Select([]string{"26", "08"}, 260, 13, nil, false, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, "26", sel.Best.Designator)
	assert.InDelta(t, 0, sel.Best.CrosswindKt, 0.5)
}

func TestSelectFlagsExceedsThreshold(t *testing.T) {
	sel, err := Select([]string{"09"}, 0, 20, nil, false, nil, 10)
	require.NoError(t, err)
	assert.True(t, sel.Exceeds)
}

func TestSelectUsesGustWhenRequested(t *testing.T) {
	gust := 25
	sel, err := Select([]string{"09"}, 0, 10, &gust, true, nil, 50)
	require.NoError(t, err)
	assert.Equal(t, "gust", sel.SpeedSource)
	assert.InDelta(t, 25, sel.Best.CrosswindKt, 0.5)
}

func TestSelectAppliesMagneticVariation(t *testing.T) {
	variation := 10.0
	sel, err := Select([]string{"27"}, 280, 10, nil, false, &variation, 50)
	require.NoError(t, err)
	assert.InDelta(t, 0, sel.Best.CrosswindKt, 0.5)
}

func TestSelectErrorsOnNoValidDesignators(t *testing.T) {
	_, err := Select([]string{"LR", ""}, 0, 10, nil, false, nil, 10)
	assert.Error(t, err)
}

func TestSelectErrorsOnEmptyList(t *testing.T) {
	_, err := Select(nil, 0, 10, nil, false, nil, 10)
	assert.Error(t, err)
}

package colormap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake_EvenlySpaced(t *testing.T) {
	cm, err := Make([]RGB{{0, 0, 0}, {1, 1, 1}}, nil, false)
	require.NoError(t, err)

	assert.Equal(t, RGB{0, 0, 0}, cm.LUT[0])
	assert.Equal(t, RGB{1, 1, 1}, cm.LUT[Size-1])
	assert.InDelta(t, 128.0/255, cm.LUT[128].R, 1e-12)
	assert.Equal(t, cm.LUT[Size-1], cm.At(2))
	assert.Equal(t, cm.LUT[0], cm.At(-1))
}

func TestMake_EightBitWithPositions(t *testing.T) {
	colors := []RGB{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}}
	cm, err := Make(colors, []float64{0, 0.2, 1}, true)
	require.NoError(t, err)

	assert.Equal(t, RGB{1, 0, 0}, cm.LUT[0])
	assert.Equal(t, RGB{0, 0, 1}, cm.LUT[Size-1])
	assert.Equal(t, RGB{0, 0, 1}, cm.At(1))

	// x = 51/255 = 0.2 sits on the middle anchor.
	mid := cm.LUT[51]
	assert.InDelta(t, 0, mid.R, 1e-12)
	assert.InDelta(t, 1, mid.G, 1e-12)
}

func TestMake_Validation(t *testing.T) {
	two := []RGB{{0, 0, 0}, {1, 1, 1}}

	_, err := Make(two, []float64{0, 0.5, 1}, false)
	require.ErrorIs(t, err, ErrPositionLength)

	_, err = Make(two, []float64{0.1, 1}, false)
	require.ErrorIs(t, err, ErrPositionBounds)

	_, err = Make(two, []float64{0, 0.9}, false)
	require.ErrorIs(t, err, ErrPositionBounds)

	_, err = Make(two[:1], nil, false)
	require.ErrorIs(t, err, ErrTooFewColors)

	_, err = Make([]RGB{{}, {}, {}, {}}, []float64{0, 0.8, 0.5, 1}, false)
	require.Error(t, err)
}

// Package colormap builds linear segmented colour lookup tables from a list
// of anchor colours.
package colormap

import (
	"errors"
	"fmt"
	"math"
)

// Size is the number of entries in a generated lookup table.
const Size = 256

var (
	ErrPositionLength = errors.New("colormap: position length must match colors")
	ErrPositionBounds = errors.New("colormap: position must start with 0 and end with 1")
	ErrTooFewColors   = errors.New("colormap: need at least 2 colors")
)

// RGB is a colour with components in [0, 1].
type RGB struct {
	R, G, B float64
}

// Colormap is a fixed-size lookup table from [0, 1] to colours.
type Colormap struct {
	LUT [Size]RGB
}

// Make builds a colormap that interpolates linearly between colors placed at
// position. A nil position spaces the colors evenly. With eightBit set the
// components are 0-255 integers and are scaled to [0, 1].
func Make(colors []RGB, position []float64, eightBit bool) (*Colormap, error) {
	if len(colors) < 2 {
		return nil, ErrTooFewColors
	}
	if position == nil {
		position = make([]float64, len(colors))
		for i := range position {
			position[i] = float64(i) / float64(len(colors)-1)
		}
	} else {
		if len(position) != len(colors) {
			return nil, fmt.Errorf("%w: %d positions, %d colors", ErrPositionLength, len(position), len(colors))
		}
		if position[0] != 0 || position[len(position)-1] != 1 {
			return nil, ErrPositionBounds
		}
		for i := 1; i < len(position); i++ {
			if position[i] < position[i-1] {
				return nil, fmt.Errorf("colormap: position not increasing at index %d", i)
			}
		}
	}

	anchors := make([]RGB, len(colors))
	for i, c := range colors {
		if eightBit {
			c = RGB{R: c.R / 255, G: c.G / 255, B: c.B / 255}
		}
		anchors[i] = c
	}

	cm := &Colormap{}
	seg := 0
	for i := range cm.LUT {
		x := float64(i) / (Size - 1)
		for seg < len(position)-2 && x > position[seg+1] {
			seg++
		}
		x0, x1 := position[seg], position[seg+1]
		var frac float64
		if x1 > x0 {
			frac = (x - x0) / (x1 - x0)
		}
		a, b := anchors[seg], anchors[seg+1]
		cm.LUT[i] = RGB{
			R: a.R + (b.R-a.R)*frac,
			G: a.G + (b.G-a.G)*frac,
			B: a.B + (b.B-a.B)*frac,
		}
	}
	return cm, nil
}

// At returns the colour for x, clamped to [0, 1]. NaN maps to the first entry.
func (c *Colormap) At(x float64) RGB {
	if math.IsNaN(x) || x <= 0 {
		return c.LUT[0]
	}
	if x >= 1 {
		return c.LUT[Size-1]
	}
	return c.LUT[int(x*(Size-1)+0.5)]
}

package common

import (
	"image/color"
	"math"
)

func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// InverseLerp maps v from [a, b] to [0, 1]. A degenerate range maps to 0.5.
func InverseLerp(a, b, v float64) float64 {
	if a == b {
		return 0.5
	}
	return Clamp01((v - a) / (b - a))
}

// LerpNRGBA blends two colours channel by channel; t is clamped.
func LerpNRGBA(a, b color.NRGBA, t float64) color.NRGBA {
	t = Clamp01(t)
	ch := func(x, y uint8) uint8 {
		return uint8(math.Round(Lerp(float64(x), float64(y), t)))
	}
	return color.NRGBA{R: ch(a.R, b.R), G: ch(a.G, b.G), B: ch(a.B, b.B), A: ch(a.A, b.A)}
}

package common

import (
	"image/color"
	"testing"
)

func TestInverseLerp(t *testing.T) {
	cases := []struct {
		a, b, v, want float64
	}{
		{0, 10, 5, 0.5},
		{0, 10, -1, 0},
		{0, 10, 11, 1},
		{-8, -2, -8, 0},
		{3, 3, 3, 0.5},
	}
	for _, c := range cases {
		if got := InverseLerp(c.a, c.b, c.v); got != c.want {
			t.Errorf("InverseLerp(%v, %v, %v) = %v, want %v", c.a, c.b, c.v, got, c.want)
		}
	}
}

func TestLerpNRGBA(t *testing.T) {
	a := color.NRGBA{R: 0, G: 100, B: 200, A: 255}
	b := color.NRGBA{R: 200, G: 100, B: 0, A: 255}
	if got := LerpNRGBA(a, b, 0.5); got != (color.NRGBA{R: 100, G: 100, B: 100, A: 255}) {
		t.Fatalf("midpoint = %v", got)
	}
	if got := LerpNRGBA(a, b, 2); got != b {
		t.Fatalf("t is not clamped: %v", got)
	}
}

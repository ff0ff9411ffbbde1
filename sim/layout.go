package sim

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
)

// Layout produces the starting positions for n dynamic bodies.
type Layout interface {
	Positions(n int, rng *rand.Rand) ([]mgl64.Vec3, error)
}

// LayoutFunc adapts a function to Layout.
type LayoutFunc func(n int, rng *rand.Rand) ([]mgl64.Vec3, error)

func (f LayoutFunc) Positions(n int, rng *rand.Rand) ([]mgl64.Vec3, error) {
	return f(n, rng)
}

// LatticeSide returns the smallest s with s*s*s >= n.
func LatticeSide(n int) int {
	if n <= 0 {
		return 0
	}
	s := int(math.Ceil(math.Cbrt(float64(n))))
	for s > 1 && (s-1)*(s-1)*(s-1) >= n {
		s--
	}
	for s*s*s < n {
		s++
	}
	return s
}

// LatticeLayout scatters bodies over a jittered cube lattice in front of the
// camera. Every axis of every body gets its own jitter draw in [0, Jitter).
type LatticeLayout struct {
	Spacing  float64 // x and z spacing
	Rise     float64 // y spacing
	Jitter   float64
	Distance float64 // extra z offset beyond the lattice side
}

// DefaultLattice is the scatter used by the default scene.
func DefaultLattice() LatticeLayout {
	return LatticeLayout{Spacing: 2.2, Rise: 3, Jitter: 1, Distance: 3}
}

// Positions places n bodies on the lattice, iterating x, then y, then z.
func (l LatticeLayout) Positions(n int, rng *rand.Rand) ([]mgl64.Vec3, error) {
	if n < 0 {
		return nil, fmt.Errorf("sim: lattice layout: negative count %d", n)
	}
	side := LatticeSide(n)
	half := float64(side) / 2
	out := make([]mgl64.Vec3, 0, n)
	for x := 0; x < side && len(out) < n; x++ {
		for y := 0; y < side && len(out) < n; y++ {
			for z := 0; z < side && len(out) < n; z++ {
				out = append(out, mgl64.Vec3{
					(float64(x) - half) * (l.Spacing + l.Jitter*rng.Float64()),
					float64(y) * (l.Rise + l.Jitter*rng.Float64()),
					(float64(z)-half)*(l.Spacing+l.Jitter*rng.Float64()) - float64(side) - l.Distance,
				})
			}
		}
	}
	return out, nil
}

// Bounds returns the box every position produced for n bodies falls in.
func (l LatticeLayout) Bounds(n int) (lo, hi mgl64.Vec3) {
	side := LatticeSide(n)
	if side == 0 {
		return mgl64.Vec3{}, mgl64.Vec3{}
	}
	half := float64(side) / 2
	cLo, cHi := -half, float64(side-1)-half
	near, far := l.Spacing, l.Spacing+l.Jitter

	xLo := math.Min(cLo*near, cLo*far)
	xHi := math.Max(cHi*near, cHi*far)
	shift := -float64(side) - l.Distance

	lo = mgl64.Vec3{xLo, 0, xLo + shift}
	hi = mgl64.Vec3{xHi, float64(side-1) * (l.Rise + l.Jitter), xHi + shift}
	return lo, hi
}

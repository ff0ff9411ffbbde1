package script

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/boxfall/sim"
)

func TestEmbeddedLatticeMatchesBuiltin(t *testing.T) {
	l, err := Load("lattice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, n := range []int{0, 1, 9, 27, 40} {
		got, err := l.Positions(n, rand.New(rand.NewPCG(3, 4)))
		if err != nil {
			t.Fatalf("Positions(%d): %v", n, err)
		}
		want, _ := sim.DefaultLattice().Positions(n, rand.New(rand.NewPCG(3, 4)))
		if len(got) != len(want) {
			t.Fatalf("n=%d: %d positions, want %d", n, len(got), len(want))
		}
		for i := range want {
			if !got[i].ApproxEqualThreshold(want[i], 1e-9) {
				t.Fatalf("n=%d body %d: %v, want %v", n, i, got[i], want[i])
			}
		}
	}
}

func TestEmbeddedTower(t *testing.T) {
	l, err := Load("scripts/tower.tengo")
	if err != nil {
		t.Fatal(err)
	}
	pos, err := l.Positions(5, rand.New(rand.NewPCG(1, 1)))
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(pos); i++ {
		if pos[i][1] <= pos[i-1][1] {
			t.Fatalf("tower not ascending at %d: %v", i, pos)
		}
	}
}

func TestLayoutErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"unset", `x := 1`, "positions not set"},
		{"not array", `positions = 3`, "must be an array"},
		{"short", `positions = [[0, 0, 0]]`, "1 positions for 2 bodies"},
		{"bad vector", `positions = [[0, 0], [0, 0, 0]]`, "position 0"},
		{"bad component", `positions = [[0, "a", 0], [0, 0, 0]]`, "component 1"},
		{"runtime", "f := func(a) { return a + \"x\" }\npositions = f(1)", "run"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			l, err := Compile(c.name, []byte(c.src))
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			_, err = l.Positions(2, rand.New(rand.NewPCG(1, 1)))
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Fatalf("err = %v, want it to mention %q", err, c.want)
			}
		})
	}
}

func TestLayoutUnsetIsSentinel(t *testing.T) {
	l, err := Compile("unset", []byte(`y := n`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Positions(1, rand.New(rand.NewPCG(1, 1))); !errors.Is(err, ErrNoPositions) {
		t.Fatalf("err = %v, want ErrNoPositions", err)
	}
}

func TestLayoutIntegerComponents(t *testing.T) {
	l, err := Compile("ints", []byte(`
positions = []
for i := 0; i < n; i++ {
	positions = append(positions, [i, side, -1])
}
`))
	if err != nil {
		t.Fatal(err)
	}
	pos, err := l.Positions(3, rand.New(rand.NewPCG(1, 1)))
	if err != nil {
		t.Fatal(err)
	}
	want := []mgl64.Vec3{{0, 2, -1}, {1, 2, -1}, {2, 2, -1}}
	for i := range want {
		if pos[i] != want[i] {
			t.Fatalf("position %d = %v, want %v", i, pos[i], want[i])
		}
	}
}

func TestCompileError(t *testing.T) {
	if _, err := Compile("broken", []byte(`positions = [`)); err == nil {
		t.Fatalf("expected compile error")
	}
	if _, err := Load("does-not-exist"); err == nil {
		t.Fatalf("expected load error")
	}
}

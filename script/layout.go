package script

import (
	"embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/boxfall/sim"
)

//go:embed scripts/*.tengo
var ScriptsFS embed.FS

// ErrNoPositions is returned when a script never assigns positions.
var ErrNoPositions = errors.New("script: positions not set")

// Layout is a sim.Layout backed by a compiled tengo script.
type Layout struct {
	name     string
	compiled *tengo.Compiled

	// A compiled script is shared state; one run at a time.
	mu sync.Mutex
}

var _ sim.Layout = (*Layout)(nil)

// Compile builds a layout from source. name is used in error messages. The
// script sees n (the body count), side (the lattice side for n) and rand (a
// callable returning a float in [0, 1)), and must assign positions an array
// of [x, y, z] arrays.
func Compile(name string, src []byte) (*Layout, error) {
	s := tengo.NewScript(src)
	_ = s.Add("n", 0)
	_ = s.Add("side", 0)
	_ = s.Add("rand", &tengo.UserFunction{Name: "rand", Value: func(...tengo.Object) (tengo.Object, error) {
		return &tengo.Float{Value: 0}, nil
	}})
	_ = s.Add("positions", nil)
	s.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("script: compile %s: %w", name, err)
	}
	return &Layout{name: name, compiled: compiled}, nil
}

// Load reads a script from disk, falling back to the embedded scripts.
func Load(name string) (*Layout, error) {
	src, err := os.ReadFile(name)
	if err != nil {
		src, err = ScriptsFS.ReadFile(cleanScriptPath(name))
		if err != nil {
			return nil, fmt.Errorf("script: load %s: %w", name, err)
		}
	}
	return Compile(name, src)
}

// Name returns the script name given to Compile or Load.
func (l *Layout) Name() string {
	return l.name
}

// Positions runs the script for n bodies.
func (l *Layout) Positions(n int, rng *rand.Rand) ([]mgl64.Vec3, error) {
	if n < 0 {
		return nil, fmt.Errorf("script: %s: negative count %d", l.name, n)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	draw := &tengo.UserFunction{Name: "rand", Value: func(...tengo.Object) (tengo.Object, error) {
		return &tengo.Float{Value: rng.Float64()}, nil
	}}
	if err := l.compiled.Set("n", n); err != nil {
		return nil, err
	}
	if err := l.compiled.Set("side", sim.LatticeSide(n)); err != nil {
		return nil, err
	}
	if err := l.compiled.Set("rand", draw); err != nil {
		return nil, err
	}
	if err := l.compiled.Set("positions", nil); err != nil {
		return nil, err
	}
	if err := l.compiled.Run(); err != nil {
		return nil, fmt.Errorf("script: run %s: %w", l.name, err)
	}

	v := l.compiled.Get("positions")
	if v == nil || v.IsUndefined() {
		return nil, fmt.Errorf("%w in %s", ErrNoPositions, l.name)
	}
	items, ok := v.Value().([]any)
	if !ok {
		return nil, fmt.Errorf("script: %s: positions must be an array, got %s", l.name, v.ValueType())
	}
	if len(items) != n {
		return nil, fmt.Errorf("script: %s: %d positions for %d bodies", l.name, len(items), n)
	}

	out := make([]mgl64.Vec3, n)
	for i, item := range items {
		p, err := toVec3(item)
		if err != nil {
			return nil, fmt.Errorf("script: %s: position %d: %w", l.name, i, err)
		}
		out[i] = p
	}
	return out, nil
}

func toVec3(v any) (mgl64.Vec3, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("want [x, y, z], got %v", v)
	}
	var out mgl64.Vec3
	for i, c := range arr {
		switch x := c.(type) {
		case float64:
			out[i] = x
		case int64:
			out[i] = float64(x)
		default:
			return mgl64.Vec3{}, fmt.Errorf("component %d is %T", i, c)
		}
	}
	return out, nil
}

func cleanScriptPath(path string) string {
	s := filepath.ToSlash(path)
	if after, ok := strings.CutPrefix(s, "script/"); ok {
		s = after
	}
	if after, ok := strings.CutPrefix(s, "scripts/"); ok {
		s = after
	}
	if filepath.Ext(s) == "" {
		s += ".tengo"
	}
	return "scripts/" + s
}

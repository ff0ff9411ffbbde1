package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/boxfall/script"
	"github.com/milk9111/boxfall/sim"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Addr != ":8080" || cfg.Server.Queue != 8 {
		t.Fatalf("server = %+v", cfg.Server)
	}
	if cfg.Sim.TickInterval() != time.Second/60 {
		t.Fatalf("tick interval = %s", cfg.Sim.TickInterval())
	}
	if cfg.Sim.ResetDelay != time.Second || cfg.Sim.MaxSubSteps != 2 {
		t.Fatalf("sim = %+v", cfg.Sim)
	}
	if got := cfg.Physics.Ground.Spec(); got != sim.DefaultGround() {
		t.Fatalf("ground = %+v, want %+v", got, sim.DefaultGround())
	}
	if got := cfg.Physics.Box.Spec(); got != sim.DefaultBox() {
		t.Fatalf("box = %+v, want %+v", got, sim.DefaultBox())
	}
	if got := cfg.Layout.Lattice(); got != sim.DefaultLattice() {
		t.Fatalf("lattice = %+v", got)
	}
	if cfg.Layout.Orientation() != mgl64.QuatIdent() {
		t.Fatalf("orientation = %v", cfg.Layout.Orientation())
	}
	eng := cfg.Physics.Engine()
	if eng.Gravity != (mgl64.Vec3{0, -10, 0}) || eng.SleepTime != 2*time.Second {
		t.Fatalf("engine = %+v", eng)
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
sim:
  bodies: 1000
layout:
  reset_orientation: [1, 0, 0, 1]
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sim.Bodies != 1000 {
		t.Fatalf("bodies = %d", cfg.Sim.Bodies)
	}
	if cfg.Sim.TickHz != 60 || cfg.Server.Addr != ":8080" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if q := cfg.Layout.Orientation(); q.W != 1 || q.V[0] != 1 {
		t.Fatalf("orientation = %v", q)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"negative bodies", "sim: {bodies: -1}", "sim.bodies"},
		{"too many bodies", "sim: {bodies: 20001}", "sim.bodies"},
		{"zero tick", "sim: {tick_hz: 0}", "sim.tick_hz"},
		{"zero queue", "server: {queue: 0}", "server.queue"},
		{"massless box", "physics: {box: {mass: 0}}", "physics.box.mass"},
		{"heavy ground", "physics: {ground: {mass: 5}}", "physics.ground.mass"},
		{"flat box", "physics: {box: {half_extents: [1, 0, 1]}}", "physics.box.half_extents"},
		{"zero quaternion", "layout: {reset_orientation: [0, 0, 0, 0]}", "reset_orientation"},
		{"bad spacing", "layout: {spacing: 0}", "layout spacing"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Parse([]byte(c.yaml))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Fatalf("err = %v, want it to mention %q", err, c.want)
			}
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("physics: {gravity: [0, 1]}")); err == nil {
		t.Fatalf("expected error for a two-element gravity")
	}
	if _, err := Parse([]byte("sim: [")); err == nil {
		t.Fatalf("expected syntax error")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "boxfall.yaml")
	if err := os.WriteFile(path, []byte("sim: {bodies: 7, seed: 42}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sim.Bodies != 7 || cfg.Sim.Seed != 42 {
		t.Fatalf("sim = %+v", cfg.Sim)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for a missing file")
	}
	if cfg, err := Load(""); err != nil || cfg.Sim.Bodies != 200 {
		t.Fatalf("Load(\"\") = %+v, %v", cfg.Sim, err)
	}
}

func TestSeededRandIsDeterministic(t *testing.T) {
	c := SimConfig{Seed: 9}
	a, b := c.Rand(), c.Rand()
	for i := 0; i < 5; i++ {
		if a.Uint64() != b.Uint64() {
			t.Fatalf("seeded sources diverged at draw %d", i)
		}
	}
}

func TestOptionsLayout(t *testing.T) {
	cfg := Default()
	opts, err := cfg.Options()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := opts.Layout.(sim.LatticeLayout); !ok {
		t.Fatalf("layout = %T, want lattice", opts.Layout)
	}

	cfg.Layout.Script = "tower"
	opts, err = cfg.Options()
	if err != nil {
		t.Fatal(err)
	}
	if l, ok := opts.Layout.(*script.Layout); !ok || l.Name() != "tower" {
		t.Fatalf("layout = %T, want the tower script", opts.Layout)
	}

	cfg.Layout.Script = "nope"
	if _, err := cfg.Options(); err == nil {
		t.Fatalf("expected error for a missing script")
	}
}

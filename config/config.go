package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/boxfall/physics"
	"github.com/milk9111/boxfall/physics/chipmunk"
	"github.com/milk9111/boxfall/protocol"
	"github.com/milk9111/boxfall/script"
	"github.com/milk9111/boxfall/sim"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// ErrEmpty is returned by Reload for a file with no content.
var ErrEmpty = errors.New("config: empty file")

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Sim     SimConfig     `yaml:"sim"`
	Physics PhysicsConfig `yaml:"physics"`
	Layout  LayoutConfig  `yaml:"layout"`
	Record  RecordConfig  `yaml:"record"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Queue is the per-connection outbound frame buffer.
	Queue int `yaml:"queue"`
}

type SimConfig struct {
	Bodies      int           `yaml:"bodies"`
	TickHz      float64       `yaml:"tick_hz"`
	MaxSubSteps int           `yaml:"max_sub_steps"`
	ResetDelay  time.Duration `yaml:"reset_delay"`
	// Seed 0 picks a random seed.
	Seed uint64 `yaml:"seed"`
}

type BoxConfig struct {
	HalfExtents [3]float64 `yaml:"half_extents"`
	Position    [3]float64 `yaml:"position"`
	Mass        float64    `yaml:"mass"`
}

type PhysicsConfig struct {
	Gravity    [3]float64    `yaml:"gravity"`
	Ground     BoxConfig     `yaml:"ground"`
	Box        BoxConfig     `yaml:"box"`
	Iterations uint          `yaml:"iterations"`
	SleepTime  time.Duration `yaml:"sleep_time"`
	FixedStep  time.Duration `yaml:"fixed_step"`
	LaneDepth  float64       `yaml:"lane_depth"`
	Friction   float64       `yaml:"friction"`
	Elasticity float64       `yaml:"elasticity"`
}

type LayoutConfig struct {
	Spacing  float64 `yaml:"spacing"`
	Rise     float64 `yaml:"rise"`
	Jitter   float64 `yaml:"jitter"`
	Distance float64 `yaml:"distance"`
	// ResetOrientation is x, y, z, w.
	ResetOrientation [4]float64 `yaml:"reset_orientation"`
	// Script, when set, names a tengo layout script that replaces the lattice.
	Script string `yaml:"script"`
}

type RecordConfig struct {
	Path string `yaml:"path"`
}

// Default returns the embedded defaults.
func Default() Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Parse decodes data over the embedded defaults and validates the result.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal defaults: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: unmarshal: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads path and decodes it over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Reload is Load for a file that is being edited. An empty file is
// rejected instead of falling back to the defaults, since it usually means
// the editor has truncated the file and not yet written it.
func Reload(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reload %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Config{}, fmt.Errorf("config: reload %s: %w", path, ErrEmpty)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Server.Queue < 1 {
		bad("server.queue must be at least 1, got %d", c.Server.Queue)
	}
	if err := protocol.ValidateBodyCount(float64(c.Sim.Bodies)); err != nil {
		bad("sim.bodies: %v", err)
	}
	if c.Sim.TickHz <= 0 || math.IsInf(c.Sim.TickHz, 0) || math.IsNaN(c.Sim.TickHz) {
		bad("sim.tick_hz must be positive, got %v", c.Sim.TickHz)
	}
	if c.Sim.ResetDelay < 0 {
		bad("sim.reset_delay must not be negative, got %s", c.Sim.ResetDelay)
	}
	if c.Physics.Box.Mass <= 0 {
		bad("physics.box.mass must be positive, got %v", c.Physics.Box.Mass)
	}
	if c.Physics.Ground.Mass != 0 {
		bad("physics.ground.mass must be 0, got %v", c.Physics.Ground.Mass)
	}
	for _, b := range []struct {
		name string
		he   [3]float64
	}{{"physics.box", c.Physics.Box.HalfExtents}, {"physics.ground", c.Physics.Ground.HalfExtents}} {
		for _, v := range b.he {
			if v <= 0 {
				bad("%s.half_extents must be positive, got %v", b.name, b.he)
				break
			}
		}
	}
	if c.Physics.FixedStep < 0 {
		bad("physics.fixed_step must not be negative, got %s", c.Physics.FixedStep)
	}
	if c.Physics.LaneDepth < 0 {
		bad("physics.lane_depth must not be negative, got %v", c.Physics.LaneDepth)
	}
	if c.Layout.Spacing <= 0 || c.Layout.Rise < 0 || c.Layout.Jitter < 0 {
		bad("layout spacing must be positive and rise, jitter non-negative")
	}
	if c.Layout.ResetOrientation == ([4]float64{}) {
		bad("layout.reset_orientation must not be the zero quaternion")
	}
	return errors.Join(errs...)
}

// TickInterval is the period between ticks.
func (c SimConfig) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.TickHz)
}

// Rand returns the layout random source. A zero seed is replaced with a
// random one.
func (c SimConfig) Rand() *rand.Rand {
	seed := c.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Engine converts the physics section to the chipmunk tuning.
func (c PhysicsConfig) Engine() chipmunk.Config {
	return chipmunk.Config{
		Gravity:    mgl64.Vec3(c.Gravity),
		Iterations: c.Iterations,
		SleepTime:  c.SleepTime,
		FixedStep:  c.FixedStep,
		LaneDepth:  c.LaneDepth,
		Friction:   c.Friction,
		Elasticity: c.Elasticity,
	}
}

// Spec converts a box section to a body spec.
func (c BoxConfig) Spec() physics.BoxSpec {
	tr := physics.IdentityTransform()
	tr.Position = mgl64.Vec3(c.Position)
	return physics.BoxSpec{Mass: c.Mass, HalfExtents: mgl64.Vec3(c.HalfExtents), Transform: tr}
}

// Lattice returns the built-in lattice layout with the configured constants.
func (c LayoutConfig) Lattice() sim.LatticeLayout {
	return sim.LatticeLayout{Spacing: c.Spacing, Rise: c.Rise, Jitter: c.Jitter, Distance: c.Distance}
}

// Build returns the script layout when one is configured, the lattice
// otherwise.
func (c LayoutConfig) Build() (sim.Layout, error) {
	if c.Script == "" {
		return c.Lattice(), nil
	}
	return script.Load(c.Script)
}

// Orientation returns the reset orientation as a quaternion.
func (c LayoutConfig) Orientation() mgl64.Quat {
	o := c.ResetOrientation
	return mgl64.Quat{W: o[3], V: mgl64.Vec3{o[0], o[1], o[2]}}
}

// Options returns the loop options described by c. Sink, Clock and Logger are
// left for the caller.
func (c Config) Options() (sim.Options, error) {
	layout, err := c.Layout.Build()
	if err != nil {
		return sim.Options{}, err
	}
	return sim.Options{
		Ground:           c.Physics.Ground.Spec(),
		Box:              c.Physics.Box.Spec(),
		MaxSubSteps:      c.Sim.MaxSubSteps,
		ResetDelay:       c.Sim.ResetDelay,
		ResetOrientation: c.Layout.Orientation(),
		Layout:           layout,
		Rand:             c.Sim.Rand(),
	}, nil
}

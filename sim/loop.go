package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/boxfall/physics"
	"github.com/milk9111/boxfall/protocol"
)

// DefaultMaxSubSteps bounds the engine sub-steps per tick.
const DefaultMaxSubSteps = 2

var (
	// ErrInvalidBodyCount is returned by Configure for unusable counts.
	ErrInvalidBodyCount = protocol.ErrInvalidBodyCount
	// ErrStepFailed wraps engine step failures. The loop cannot recover from it.
	ErrStepFailed = errors.New("sim: physics step failed")
)

// Options configures a Loop. Zero values fall back to the default scene.
type Options struct {
	Ground physics.BoxSpec
	Box    physics.BoxSpec

	MaxSubSteps int
	ResetDelay  time.Duration
	// ResetOrientation is written to every body on reset. Zero means identity.
	ResetOrientation mgl64.Quat

	Layout Layout
	Rand   *rand.Rand
	Clock  Clock
	Sink   Sink
	Logger *slog.Logger
}

// DefaultGround is a 40x40x40 static box whose top face sits at y=0.
func DefaultGround() physics.BoxSpec {
	tr := physics.IdentityTransform()
	tr.Position = mgl64.Vec3{0, -20, 0}
	return physics.BoxSpec{Mass: 0, HalfExtents: mgl64.Vec3{20, 20, 20}, Transform: tr}
}

// DefaultBox is a 2x2x2 box of unit mass.
func DefaultBox() physics.BoxSpec {
	return physics.BoxSpec{Mass: 1, HalfExtents: mgl64.Vec3{1, 1, 1}, Transform: physics.IdentityTransform()}
}

// Loop is the simulation state. It is not safe for concurrent use; Worker
// serializes access.
type Loop struct {
	opts  Options
	world physics.World
	log   *slog.Logger

	// bodies[0] is the ground, bodies[1:] the dynamic boxes.
	bodies []physics.Body
	stats  FrameStats
	idle   IdleDetector
	last   time.Time
	resets int
}

// NewLoop adds the ground to world and returns an empty loop.
func NewLoop(world physics.World, opts Options) (*Loop, error) {
	if world == nil {
		return nil, errors.New("sim: nil world")
	}
	if opts.Ground.HalfExtents == (mgl64.Vec3{}) {
		opts.Ground = DefaultGround()
	}
	if opts.Box.HalfExtents == (mgl64.Vec3{}) {
		opts.Box = DefaultBox()
	}
	if opts.Box.Mass <= 0 {
		return nil, fmt.Errorf("sim: box mass must be positive, got %v", opts.Box.Mass)
	}
	if opts.MaxSubSteps == 0 {
		opts.MaxSubSteps = DefaultMaxSubSteps
	}
	if opts.ResetDelay <= 0 {
		opts.ResetDelay = DefaultResetDelay
	}
	if opts.ResetOrientation == (mgl64.Quat{}) {
		opts.ResetOrientation = mgl64.QuatIdent()
	}
	if opts.Layout == nil {
		opts.Layout = DefaultLattice()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Sink == nil {
		opts.Sink = Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	ground, err := world.AddBox(opts.Ground)
	if err != nil {
		return nil, fmt.Errorf("sim: add ground: %w", err)
	}

	l := &Loop{
		opts:   opts,
		world:  world,
		log:    opts.Logger.With("component", "sim"),
		bodies: []physics.Body{ground},
		idle:   IdleDetector{Delay: opts.ResetDelay},
		last:   opts.Clock.Now(),
	}
	return l, nil
}

// Len returns the number of dynamic bodies.
func (l *Loop) Len() int {
	return len(l.bodies) - 1
}

// Body returns the body at index i; 0 is the ground.
func (l *Loop) Body(i int) physics.Body {
	if i < 0 || i >= len(l.bodies) {
		return nil
	}
	return l.bodies[i]
}

// Stats returns the frame-time estimators.
func (l *Loop) Stats() FrameStats {
	return l.stats
}

// Idle returns the idle detector state.
func (l *Loop) Idle() IdleDetector {
	return l.idle
}

// Resets returns how many position resets have run, the initial ones included.
func (l *Loop) Resets() int {
	return l.resets
}

// Configure resizes the pool to exactly n boxes, resets the frame statistics
// and scatters every box.
func (l *Loop) Configure(n int) error {
	if err := protocol.ValidateBodyCount(float64(n)); err != nil {
		return err
	}

	l.stats.Reset()
	l.idle.Reset()

	for l.Len() > n {
		last := l.bodies[len(l.bodies)-1]
		if err := l.world.RemoveBody(last); err != nil {
			return fmt.Errorf("sim: shrink to %d: %w", n, err)
		}
		l.bodies[len(l.bodies)-1] = nil
		l.bodies = l.bodies[:len(l.bodies)-1]
	}
	for l.Len() < n {
		b, err := l.world.AddBox(l.opts.Box)
		if err != nil {
			return fmt.Errorf("sim: grow to %d: %w", n, err)
		}
		l.bodies = append(l.bodies, b)
	}

	if err := l.ResetPositions(); err != nil {
		return err
	}
	l.last = l.opts.Clock.Now()
	l.log.Info("configured", "bodies", n)
	return nil
}

// ResetPositions scatters every dynamic body using the layout, sets the reset
// orientation and wakes it. Frame statistics are left alone.
func (l *Loop) ResetPositions() error {
	n := l.Len()
	positions, err := l.opts.Layout.Positions(n, l.opts.Rand)
	if err != nil {
		return fmt.Errorf("sim: layout: %w", err)
	}
	if len(positions) != n {
		return fmt.Errorf("sim: layout returned %d positions for %d bodies", len(positions), n)
	}
	for i, pos := range positions {
		b := l.bodies[i+1]
		b.SetTransform(physics.Transform{Position: pos, Rotation: l.opts.ResetOrientation})
		b.Activate()
	}
	l.resets++
	return nil
}

// Tick advances the world by the time elapsed since the previous tick, emits
// a frame to the sink and resets the scene when it has gone idle. Only
// ErrStepFailed is returned; sink and reset failures are logged.
func (l *Loop) Tick() (protocol.Frame, error) {
	now := l.opts.Clock.Now()
	dt := now.Sub(l.last)
	l.last = now
	if dt <= 0 {
		dt = time.Millisecond
	}

	if err := l.world.Step(dt, l.opts.MaxSubSteps); err != nil {
		return protocol.Frame{}, fmt.Errorf("%w: %w", ErrStepFailed, err)
	}

	l.stats.Observe(float64(dt) / float64(time.Millisecond))

	frame := protocol.Frame{
		Objects: make([]physics.Pose, l.Len()),
		CurrFPS: l.stats.CurrFPS(),
		AllFPS:  l.stats.AllFPS(),
	}
	for i := range frame.Objects {
		frame.Objects[i] = l.bodies[i+1].Transform().Pose()
	}

	if err := l.opts.Sink.Send(frame); err != nil {
		l.log.Warn("frame dropped", "err", err)
	}

	if l.idle.Check(now, l.bodies[1:]) {
		if err := l.ResetPositions(); err != nil {
			l.log.Error("idle reset failed", "err", err)
		} else {
			l.log.Debug("idle reset", "bodies", l.Len())
		}
	}
	return frame, nil
}

package chipmunk

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/boxfall/physics"
)

// laneBits is the number of shape-filter categories used for depth lanes.
// Lanes further apart than this share a category.
const laneBits = 32

var zAxis = mgl64.Vec3{0, 0, 1}

// Config holds the engine tuning.
type Config struct {
	Gravity    mgl64.Vec3
	Iterations uint
	// SleepTime is how long a body must be idle before it falls asleep.
	// Zero or negative disables sleeping.
	SleepTime  time.Duration
	FixedStep  time.Duration
	LaneDepth  float64
	Friction   float64
	Elasticity float64
}

// DefaultConfig is -10 gravity on y with 60Hz sub-steps.
func DefaultConfig() Config {
	return Config{
		Gravity:    mgl64.Vec3{0, -10, 0},
		Iterations: 10,
		SleepTime:  2 * time.Second,
		FixedStep:  time.Second / 60,
		LaneDepth:  2.2,
		Friction:   0.5,
		Elasticity: 0,
	}
}

// World owns the Chipmunk space and every body added through it. Chipmunk is
// planar: boxes move in the x/y plane, keep their z and rotate about z.
// Bodies whose z values round to different depth lanes never collide with
// each other; everything collides with static bodies.
type World struct {
	cfg   Config
	space *cp.Space
	log   *slog.Logger

	bodies map[*Body]struct{}
	accum  time.Duration
}

// NewWorld creates an empty space configured from cfg.
func NewWorld(cfg Config, logger *slog.Logger) *World {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = 10
	}
	if cfg.FixedStep <= 0 {
		cfg.FixedStep = time.Second / 60
	}
	if cfg.LaneDepth <= 0 {
		cfg.LaneDepth = 2.2
	}

	space := cp.NewSpace()
	space.Iterations = cfg.Iterations
	space.SetGravity(cp.Vector{X: cfg.Gravity[0], Y: cfg.Gravity[1]})
	if cfg.SleepTime > 0 {
		space.SleepTimeThreshold = cfg.SleepTime.Seconds()
	}

	return &World{
		cfg:    cfg,
		space:  space,
		log:    logger.With("component", "chipmunk"),
		bodies: make(map[*Body]struct{}),
	}
}

// Space returns the underlying Chipmunk space.
func (w *World) Space() *cp.Space {
	if w == nil {
		return nil
	}
	return w.space
}

// Gravity returns the configured gravity. The z component is not simulated.
func (w *World) Gravity() mgl64.Vec3 {
	return w.cfg.Gravity
}

// Len returns the number of bodies in the world, static ones included.
func (w *World) Len() int {
	return len(w.bodies)
}

// AddBox creates a box body from spec and adds it to the space.
func (w *World) AddBox(spec physics.BoxSpec) (physics.Body, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	width := 2 * spec.HalfExtents[0]
	height := 2 * spec.HalfExtents[1]

	var body *cp.Body
	static := spec.Mass == 0
	if static {
		body = cp.NewStaticBody()
	} else {
		body = cp.NewBody(spec.Mass, cp.MomentForBox(spec.Mass, width, height))
	}

	b := &Body{
		world:  w,
		body:   body,
		static: static,
	}
	b.place(spec.Transform)

	shape := cp.NewBox(body, width, height, 0)
	shape.SetFriction(w.cfg.Friction)
	shape.SetElasticity(w.cfg.Elasticity)
	b.shape = shape
	b.applyFilter()

	w.space.AddBody(body)
	w.space.AddShape(shape)
	w.bodies[b] = struct{}{}

	w.log.Debug("added box", "static", static, "mass", spec.Mass, "z", b.z)
	return b, nil
}

// RemoveBody removes b and its shape from the space.
func (w *World) RemoveBody(pb physics.Body) error {
	b, ok := pb.(*Body)
	if !ok || b == nil || b.world != w {
		return physics.ErrForeignBody
	}
	if _, ok := w.bodies[b]; !ok {
		return physics.ErrForeignBody
	}
	w.space.RemoveShape(b.shape)
	w.space.RemoveBody(b.body)
	delete(w.bodies, b)
	return nil
}

// Step consumes dt in fixed sub-steps. Time that would need more than
// maxSubSteps sub-steps is dropped. With maxSubSteps <= 0 the space is
// stepped once by dt.
func (w *World) Step(dt time.Duration, maxSubSteps int) (err error) {
	if dt < 0 {
		return fmt.Errorf("chipmunk: negative step %s", dt)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chipmunk: step panicked: %v", r)
		}
	}()

	if maxSubSteps <= 0 {
		if dt > 0 {
			w.space.Step(dt.Seconds())
		}
		return nil
	}

	w.accum += dt
	steps := int(w.accum / w.cfg.FixedStep)
	w.accum -= time.Duration(steps) * w.cfg.FixedStep
	if steps > maxSubSteps {
		steps = maxSubSteps
	}
	fixed := w.cfg.FixedStep.Seconds()
	for i := 0; i < steps; i++ {
		w.space.Step(fixed)
	}
	return nil
}

func (w *World) lane(z float64) uint {
	lane := int(math.Round(z / w.cfg.LaneDepth))
	return uint(((lane % laneBits) + laneBits) % laneBits)
}

// Body is a Chipmunk body plus the depth it lives at.
type Body struct {
	world  *World
	body   *cp.Body
	shape  *cp.Shape
	z      float64
	static bool
}

// Transform returns the body's world transform.
func (b *Body) Transform() physics.Transform {
	pos := b.body.Position()
	return physics.Transform{
		Position: mgl64.Vec3{pos.X, pos.Y, b.z},
		Rotation: mgl64.QuatRotate(b.body.Angle(), zAxis),
	}
}

// SetTransform teleports the body. Only the rotation about z survives the
// projection onto the plane.
func (b *Body) SetTransform(t physics.Transform) {
	b.place(t)
	b.applyFilter()
	if _, ok := b.world.bodies[b]; ok && b.static && b.shape != nil {
		// Static shapes are only indexed when added to the space.
		b.world.space.RemoveShape(b.shape)
		b.world.space.AddShape(b.shape)
	}
}

// IsActive reports whether the body is awake. Static bodies are never active.
func (b *Body) IsActive() bool {
	if b.static {
		return false
	}
	return !b.body.IsSleeping()
}

// Activate wakes the body and anything it rests on.
func (b *Body) Activate() {
	if b.static {
		return
	}
	b.body.Activate()
}

// Lane returns the depth lane the body currently collides in.
func (b *Body) Lane() uint {
	return b.world.lane(b.z)
}

func (b *Body) place(t physics.Transform) {
	b.z = t.Position[2]
	b.body.SetPosition(cp.Vector{X: t.Position[0], Y: t.Position[1]})
	b.body.SetAngle(angleAboutZ(t.Rotation))
}

func (b *Body) applyFilter() {
	if b.shape == nil {
		return
	}
	if b.static {
		b.shape.SetFilter(cp.ShapeFilter{Group: 0, Categories: ^uint(0), Mask: ^uint(0)})
		return
	}
	bit := uint(1) << b.world.lane(b.z)
	b.shape.SetFilter(cp.ShapeFilter{Group: 0, Categories: bit, Mask: bit})
}

// angleAboutZ projects q onto a rotation about the z axis.
func angleAboutZ(q mgl64.Quat) float64 {
	l := q.Len()
	if l == 0 {
		return 0
	}
	q = q.Scale(1 / l)
	return 2 * math.Atan2(q.V[2], q.W)
}

package physicstest

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/boxfall/physics"
)

// World records every call made to it.
type World struct {
	Bodies  []*Body
	Steps   []time.Duration
	SubStep []int
	// StepErr, when set, is returned by every Step call.
	StepErr error

	removed int
}

// NewWorld returns an empty fake world.
func NewWorld() *World {
	return &World{}
}

// AddBox appends a body built from spec.
func (w *World) AddBox(spec physics.BoxSpec) (physics.Body, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	b := &Body{
		world:  w,
		Spec:   spec,
		T:      spec.Transform,
		Active: spec.Mass > 0,
	}
	w.Bodies = append(w.Bodies, b)
	return b, nil
}

// RemoveBody drops b from the world.
func (w *World) RemoveBody(pb physics.Body) error {
	b, ok := pb.(*Body)
	if !ok || b == nil || b.world != w {
		return physics.ErrForeignBody
	}
	for i, cur := range w.Bodies {
		if cur == b {
			w.Bodies = append(w.Bodies[:i], w.Bodies[i+1:]...)
			b.world = nil
			w.removed++
			return nil
		}
	}
	return physics.ErrForeignBody
}

// Step records dt and maxSubSteps.
func (w *World) Step(dt time.Duration, maxSubSteps int) error {
	if w.StepErr != nil {
		return w.StepErr
	}
	w.Steps = append(w.Steps, dt)
	w.SubStep = append(w.SubStep, maxSubSteps)
	return nil
}

// Gravity returns the default scene gravity.
func (w *World) Gravity() mgl64.Vec3 {
	return mgl64.Vec3{0, -10, 0}
}

// Removed returns how many bodies have been removed.
func (w *World) Removed() int {
	return w.removed
}

// Body is a fake rigid body.
type Body struct {
	world *World

	Spec   physics.BoxSpec
	T      physics.Transform
	Active bool
	// Wakes counts Activate calls.
	Wakes int
	// Sets counts SetTransform calls.
	Sets int
}

func (b *Body) Transform() physics.Transform { return b.T }

func (b *Body) SetTransform(t physics.Transform) {
	b.T = t
	b.Sets++
}

func (b *Body) IsActive() bool { return b.Active }

func (b *Body) Activate() {
	b.Wakes++
	if b.Spec.Mass > 0 {
		b.Active = true
	}
}

// Sleep marks b inactive, as an engine would once it comes to rest.
func (b *Body) Sleep() {
	b.Active = false
}

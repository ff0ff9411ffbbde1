package physics

import (
	"errors"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrForeignBody is returned when a body handle does not belong to the world.
	ErrForeignBody = errors.New("physics: body not owned by world")
	// ErrInvalidShape is returned for non-positive extents or negative mass.
	ErrInvalidShape = errors.New("physics: invalid box shape")
)

// Transform is a world-space position and orientation.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// IdentityTransform places a body at the origin with no rotation.
func IdentityTransform() Transform {
	return Transform{Rotation: mgl64.QuatIdent()}
}

// Pose is the flat wire form of a transform: x, y, z, qx, qy, qz, qw.
type Pose [7]float64

// Pose flattens t. The rotation is normalized on the way out.
func (t Transform) Pose() Pose {
	q := t.Rotation
	if l := q.Len(); l > 0 {
		q = q.Scale(1 / l)
	} else {
		q = mgl64.QuatIdent()
	}
	return Pose{
		t.Position[0], t.Position[1], t.Position[2],
		q.V[0], q.V[1], q.V[2], q.W,
	}
}

// Position returns the translation part of p.
func (p Pose) Position() mgl64.Vec3 {
	return mgl64.Vec3{p[0], p[1], p[2]}
}

// Rotation returns the orientation part of p.
func (p Pose) Rotation() mgl64.Quat {
	return mgl64.Quat{W: p[6], V: mgl64.Vec3{p[3], p[4], p[5]}}
}

// BoxSpec describes a box-shaped rigid body. A zero mass makes it static.
type BoxSpec struct {
	Mass        float64
	HalfExtents mgl64.Vec3
	Transform   Transform
}

// Validate checks the shape parameters.
func (s BoxSpec) Validate() error {
	if s.Mass < 0 {
		return ErrInvalidShape
	}
	for _, h := range s.HalfExtents {
		if h <= 0 {
			return ErrInvalidShape
		}
	}
	return nil
}

// Body is a handle to a rigid body owned by a World.
type Body interface {
	Transform() Transform
	SetTransform(t Transform)
	// IsActive reports whether the engine still simulates the body. Engines
	// put bodies to sleep once they have been at rest long enough.
	IsActive() bool
	// Activate wakes the body.
	Activate()
}

// World is a rigid-body simulation.
type World interface {
	AddBox(spec BoxSpec) (Body, error)
	RemoveBody(b Body) error
	// Step advances the simulation by dt using at most maxSubSteps fixed
	// internal steps.
	Step(dt time.Duration, maxSubSteps int) error
	Gravity() mgl64.Vec3
}

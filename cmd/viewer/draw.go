package main

import (
	"image/color"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/milk9111/boxfall/common"
	"github.com/milk9111/boxfall/physics"
)

var (
	nearColor   = color.NRGBA{R: 0xf2, G: 0xa0, B: 0x3d, A: 0xff}
	farColor    = color.NRGBA{R: 0x3d, G: 0x7e, B: 0xf2, A: 0xff}
	groundColor = color.NRGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}
)

// camera maps world x/y onto the screen, y up. The origin sits at
// (originX, originY) in screen pixels.
type camera struct {
	originX, originY float64
	zoom             float64
}

func (c camera) toScreen(v mgl64.Vec2) (float64, float64) {
	return c.originX + v[0]*c.zoom, c.originY - v[1]*c.zoom
}

// boxDrawer outlines boxes projected onto the x/y plane.
type boxDrawer struct {
	screen *ebiten.Image
	cam    camera
}

func (d *boxDrawer) drawLine(a, b mgl64.Vec2, clr color.Color) {
	x1, y1 := d.cam.toScreen(a)
	x2, y2 := d.cam.toScreen(b)
	ebitenutil.DrawLine(d.screen, x1, y1, x2, y2, clr)
}

func (d *boxDrawer) drawPolygon(verts []mgl64.Vec2, clr color.Color) {
	for i := range verts {
		d.drawLine(verts[i], verts[(i+1)%len(verts)], clr)
	}
}

// drawBox outlines a box of the given half extents at pose. Only the
// rotation about z is visible from the side.
func (d *boxDrawer) drawBox(p physics.Pose, half mgl64.Vec3, clr color.Color) {
	d.drawPolygon(boxCorners(p, half), clr)
}

// drawGround draws the top face of the ground box.
func (d *boxDrawer) drawGround(ground physics.BoxSpec) {
	top := ground.Transform.Position[1] + ground.HalfExtents[1]
	x := ground.Transform.Position[0]
	hw := ground.HalfExtents[0]
	d.drawLine(mgl64.Vec2{x - hw, top}, mgl64.Vec2{x + hw, top}, groundColor)
}

func boxCorners(p physics.Pose, half mgl64.Vec3) []mgl64.Vec2 {
	q := p.Rotation()
	angle := 2 * math.Atan2(q.V[2], q.W)
	sin, cos := math.Sincos(angle)
	pos := p.Position()

	local := [4]mgl64.Vec2{
		{-half[0], -half[1]},
		{half[0], -half[1]},
		{half[0], half[1]},
		{-half[0], half[1]},
	}
	out := make([]mgl64.Vec2, 4)
	for i, c := range local {
		out[i] = mgl64.Vec2{
			pos[0] + c[0]*cos - c[1]*sin,
			pos[1] + c[0]*sin + c[1]*cos,
		}
	}
	return out
}

// depthColor shades a body by where its z lies within [near, far].
func depthColor(z, far, near float64) color.NRGBA {
	return common.LerpNRGBA(farColor, nearColor, common.InverseLerp(far, near, z))
}

// depthOrder returns body indexes sorted far to near.
func depthOrder(objs []physics.Pose) []int {
	idx := make([]int, len(objs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return objs[idx[a]][2] < objs[idx[b]][2]
	})
	return idx
}

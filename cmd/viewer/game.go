package main

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/milk9111/boxfall/physics"
	"github.com/milk9111/boxfall/protocol"
)

const (
	baseWidth  = 1280
	baseHeight = 720
)

var background = color.NRGBA{R: 0x12, G: 0x12, B: 0x18, A: 0xff}

type Game struct {
	src    source
	log    *slog.Logger
	ground physics.BoxSpec
	half   mgl64.Vec3

	panel *controlPanel
	cam   camera

	requested atomic.Int64
	pending   atomic.Bool

	frame   protocol.Frame
	seq     uint64
	lastSeq time.Time
}

func NewGame(src source, ground physics.BoxSpec, box physics.BoxSpec, bodies int, logger *slog.Logger) *Game {
	g := &Game{
		src:    src,
		log:    logger,
		ground: ground,
		half:   box.HalfExtents,
		cam:    camera{originX: baseWidth / 2, originY: baseHeight * 0.8, zoom: 14},
	}
	g.requested.Store(int64(bodies))
	g.panel = newControlPanel(func(delta int) {
		g.request(int(g.requested.Load()) + delta)
	})
	return g
}

// request sends a body count without stalling the render loop. Requests
// made while one is in flight collapse into the latest count.
func (g *Game) request(n int) {
	if n < 0 {
		n = 0
	}
	if n > protocol.MaxBodyCount {
		n = protocol.MaxBodyCount
	}
	g.requested.Store(int64(n))
	if !g.pending.CompareAndSwap(false, true) {
		return
	}
	go g.flush()
}

func (g *Game) flush() {
	for {
		n := int(g.requested.Load())
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := g.src.SetBodies(ctx, n); err != nil {
			g.log.Warn("set bodies", "bodies", n, "err", err)
		}
		cancel()

		g.pending.Store(false)
		if int(g.requested.Load()) == n || !g.pending.CompareAndSwap(false, true) {
			return
		}
	}
}

func (g *Game) Update() error {
	if f, seq := g.src.Latest(); seq != g.seq {
		g.frame, g.seq = f, seq
		g.lastSeq = time.Now()
	}

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyUp):
		g.request(int(g.requested.Load()) + 10)
	case inpututil.IsKeyJustPressed(ebiten.KeyDown):
		g.request(int(g.requested.Load()) - 10)
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.request(int(g.requested.Load()))
	}
	if _, dy := ebiten.Wheel(); dy != 0 {
		g.cam.zoom = math.Max(2, math.Min(80, g.cam.zoom*math.Pow(1.1, dy)))
	}

	g.panel.setCount(int(g.requested.Load()), len(g.frame.Objects))
	g.panel.ui.Update()
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)

	d := &boxDrawer{screen: screen, cam: g.cam}
	d.drawGround(g.ground)

	far, near := math.Inf(1), math.Inf(-1)
	for _, p := range g.frame.Objects {
		far = math.Min(far, p[2])
		near = math.Max(near, p[2])
	}
	// Draw far boxes first so nearer ones land on top.
	order := depthOrder(g.frame.Objects)
	for _, i := range order {
		p := g.frame.Objects[i]
		d.drawBox(p, g.half, depthColor(p[2], far, near))
	}

	stale := ""
	if g.seq > 0 && time.Since(g.lastSeq) > time.Second {
		stale = "  (no frames)"
	}
	ebitenutil.DebugPrint(screen, fmt.Sprintf(
		"bodies: %d    currFPS: %d    allFPS: %d    view FPS: %.1f%s\nup/down: +-10 bodies   r: reset   wheel: zoom",
		len(g.frame.Objects), g.frame.CurrFPS, g.frame.AllFPS, ebiten.ActualFPS(), stale,
	))

	g.panel.ui.Draw(screen)
}

func (g *Game) LayoutF(outsideWidth, outsideHeight float64) (float64, float64) {
	return baseWidth, baseHeight
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return baseWidth, baseHeight
}

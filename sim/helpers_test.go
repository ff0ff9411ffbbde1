package sim

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/milk9111/boxfall/physics/physicstest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeTicker struct {
	ch    chan time.Time
	stops atomic.Int32
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stops.Add(1) }

type fakeTickers struct {
	mu   sync.Mutex
	made []*fakeTicker
}

func (f *fakeTickers) New(time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	f.made = append(f.made, t)
	return t
}

func (f *fakeTickers) Made() []*fakeTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeTicker(nil), f.made...)
}

type testLoop struct {
	loop  *Loop
	world *physicstest.World
	clock *fakeClock
	sink  *ChanSink
}

func newTestLoop(t *testing.T, mutate func(*Options)) *testLoop {
	t.Helper()
	world := physicstest.NewWorld()
	clock := newFakeClock()
	sink := NewChanSink(1024)
	opts := Options{
		Rand:  rand.New(rand.NewPCG(1, 2)),
		Clock: clock,
		Sink:  sink,
	}
	if mutate != nil {
		mutate(&opts)
	}
	loop, err := NewLoop(world, opts)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	return &testLoop{loop: loop, world: world, clock: clock, sink: sink}
}

func (tl *testLoop) fake(i int) *physicstest.Body {
	return tl.loop.Body(i).(*physicstest.Body)
}

package sim

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock. time.Now carries a monotonic reading, so
// differences between two calls are safe from wall-clock jumps.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Ticker is a repeating timer.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory starts a ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

// RealTickers is a TickerFactory backed by time.Ticker.
func RealTickers(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

package sim

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/milk9111/boxfall/protocol"
)

// DefaultTickRate is the nominal tick frequency.
const DefaultTickRate = 60

// ErrWorkerStopped is returned by Configure once Run has returned.
var ErrWorkerStopped = errors.New("sim: worker stopped")

type configureRequest struct {
	n    int
	resp chan error
}

// Worker drives a Loop from a single goroutine. Configure requests and ticks
// are handled one at a time, so a tick never sees a half-built pool.
type Worker struct {
	loop     *Loop
	interval time.Duration
	tickers  TickerFactory
	log      *slog.Logger

	inbox chan configureRequest
	done  chan struct{}
}

// NewWorker creates a worker ticking every interval. A nil factory uses real
// tickers.
func NewWorker(loop *Loop, interval time.Duration, tickers TickerFactory, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = time.Second / DefaultTickRate
	}
	if tickers == nil {
		tickers = RealTickers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		loop:     loop,
		interval: interval,
		tickers:  tickers,
		log:      logger.With("component", "worker"),
		inbox:    make(chan configureRequest),
		done:     make(chan struct{}),
	}
}

// Configure asks the running worker to resize the simulation to n bodies and
// waits for the result.
func (w *Worker) Configure(ctx context.Context, n int) error {
	if err := protocol.ValidateBodyCount(float64(n)); err != nil {
		return err
	}
	req := configureRequest{n: n, resp: make(chan error, 1)}
	select {
	case w.inbox <- req:
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.resp:
		return err
	case <-w.done:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Run processes configure requests and ticks until ctx is cancelled or the
// physics step fails. Nothing ticks before the first Configure.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)

	var ticker Ticker
	var tickC <-chan time.Time
	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case req := <-w.inbox:
			stop()
			err := w.loop.Configure(req.n)
			if err != nil {
				w.log.Error("configure failed", "bodies", req.n, "err", err)
			}
			// A failed layout still leaves a pool worth simulating.
			if err == nil || w.loop.Len() > 0 {
				ticker = w.tickers(w.interval)
				tickC = ticker.C()
			}
			req.resp <- err

		case <-tickC:
			if _, err := w.loop.Tick(); err != nil {
				w.log.Error("tick failed, stopping", "err", err)
				return err
			}
		}
	}
}

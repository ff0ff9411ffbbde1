package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/milk9111/boxfall/config"
	"github.com/milk9111/boxfall/physics/chipmunk"
	"github.com/milk9111/boxfall/protocol"
	"github.com/milk9111/boxfall/sim"
	"github.com/milk9111/boxfall/transport/ws"
)

// source feeds the viewer frames and accepts body counts.
type source interface {
	Latest() (protocol.Frame, uint64)
	SetBodies(ctx context.Context, n int) error
	Close() error
}

// latestFrame keeps only the newest frame. It never rejects a frame, so the
// simulation never logs drops on the viewer's behalf.
type latestFrame struct {
	mu    sync.Mutex
	frame protocol.Frame
	seq   uint64
}

func (l *latestFrame) Send(f protocol.Frame) error {
	l.mu.Lock()
	l.frame = f
	l.seq++
	l.mu.Unlock()
	return nil
}

func (l *latestFrame) Latest() (protocol.Frame, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frame, l.seq
}

// localSource runs the simulation in-process.
type localSource struct {
	latestFrame
	worker *sim.Worker
	cancel context.CancelFunc
}

func newLocalSource(cfg config.Config, logger *slog.Logger) (*localSource, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	s := &localSource{}
	opts.Sink = &s.latestFrame
	opts.Logger = logger

	loop, err := sim.NewLoop(chipmunk.NewWorld(cfg.Physics.Engine(), logger), opts)
	if err != nil {
		return nil, err
	}
	s.worker = sim.NewWorker(loop, cfg.Sim.TickInterval(), nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		if err := s.worker.Run(ctx); err != nil {
			logger.Error("simulation stopped", "err", err)
		}
	}()
	return s, nil
}

func (s *localSource) SetBodies(ctx context.Context, n int) error {
	return s.worker.Configure(ctx, n)
}

func (s *localSource) Close() error {
	s.cancel()
	<-s.worker.Done()
	return nil
}

// remoteSource talks to a boxfalld server.
type remoteSource struct {
	latestFrame
	client *ws.Client
	log    *slog.Logger
}

func newRemoteSource(ctx context.Context, url string, logger *slog.Logger) (*remoteSource, error) {
	c, err := ws.Dial(ctx, url, logger)
	if err != nil {
		return nil, err
	}
	s := &remoteSource{client: c, log: logger}
	go s.pump()
	return s, nil
}

func (s *remoteSource) pump() {
	frames, errs := s.client.Frames(), s.client.Errors()
	for frames != nil || errs != nil {
		select {
		case f, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			_ = s.Send(f)
		case e, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.log.Warn("server rejected request", "err", e.Error)
		}
	}
	s.log.Info("server connection closed")
}

func (s *remoteSource) SetBodies(_ context.Context, n int) error {
	return s.client.SendBodyCount(n)
}

func (s *remoteSource) Close() error {
	return s.client.Close()
}

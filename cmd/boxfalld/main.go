// Command boxfalld runs the box-drop simulation and serves it over a
// websocket at /ws.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/milk9111/boxfall/config"
	"github.com/milk9111/boxfall/physics/chipmunk"
	"github.com/milk9111/boxfall/record"
	"github.com/milk9111/boxfall/sim"
	"github.com/milk9111/boxfall/transport/ws"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config overlaying the built-in defaults")
		addr       = flag.String("addr", "", "http listen address (overrides server.addr)")
		bodies     = flag.Int("bodies", -1, "initial body count (overrides sim.bodies)")
		recordPath = flag.String("record", "", "write frames to this .jsonl.zst file (overrides record.path)")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}
	// Reloads are compared against the file, so flag overrides stay pinned
	// until the file itself changes that key.
	fromFile := cfg
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *bodies >= 0 {
		cfg.Sim.Bodies = *bodies
	}
	if *recordPath != "" {
		cfg.Record.Path = *recordPath
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, *configPath, fromFile, logger); err != nil {
		logger.Error("boxfalld stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, configPath string, fromFile config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	hub := ws.NewHub(cfg.Server.Queue, logger)
	sinks := sim.MultiSink{hub}

	if cfg.Record.Path != "" {
		rec, err := record.Create(cfg.Record.Path, nil, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Error("close recording", "err", err)
			}
		}()
		sinks = append(sinks, rec)
		logger.Info("recording frames", "path", cfg.Record.Path)
	}

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	opts.Sink = sinks
	opts.Logger = logger

	world := chipmunk.NewWorld(cfg.Physics.Engine(), logger)
	loop, err := sim.NewLoop(world, opts)
	if err != nil {
		return err
	}
	worker := sim.NewWorker(loop, cfg.Sim.TickInterval(), nil, logger)

	runErr := make(chan error, 1)
	go func() {
		runErr <- worker.Run(ctx)
	}()

	if err := worker.Configure(ctx, cfg.Sim.Bodies); err != nil {
		return err
	}

	if configPath != "" {
		go watchConfig(ctx, configPath, worker, fromFile, logger)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		select {
		case <-worker.Done():
			http.Error(rw, "simulation stopped", http.StatusServiceUnavailable)
		default:
			rw.WriteHeader(http.StatusOK)
			_, _ = rw.Write([]byte("ok"))
		}
	})
	mux.HandleFunc("/ws", ws.NewServer(hub, worker, logger).Handler())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "bodies", cfg.Sim.Bodies, "tick_hz", cfg.Sim.TickHz)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var result error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-runErr:
		result = err
		runErr <- err
	case err := <-serveErr:
		result = err
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	if err := <-runErr; err != nil && result == nil {
		result = err
	}
	return result
}

// reloadAction compares two versions of the config file. resize is set when
// sim.bodies changed; restart when anything else did.
func reloadAction(current, next config.Config) (resize, restart bool) {
	rest := next
	rest.Sim.Bodies = current.Sim.Bodies
	return next.Sim.Bodies != current.Sim.Bodies, rest != current
}

// watchConfig reloads the config file when it changes and resizes the
// simulation if the body count in the file moved. current is the file as
// last loaded, without flag overrides. Other settings need a restart.
func watchConfig(ctx context.Context, path string, worker *sim.Worker, current config.Config, logger *slog.Logger) {
	log := logger.With("component", "config")
	w, err := config.NewWatcher(path)
	if err != nil {
		log.Warn("config watch disabled", "path", path, "err", err)
		return
	}
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn("config watch", "err", err)
		case _, ok := <-w.Events:
			if !ok {
				return
			}
			next, err := config.Reload(path)
			if err != nil {
				log.Warn("config reload rejected", "err", err)
				continue
			}
			resize, restart := reloadAction(current, next)
			if resize {
				if err := worker.Configure(ctx, next.Sim.Bodies); err != nil {
					log.Error("reconfigure", "bodies", next.Sim.Bodies, "err", err)
					continue
				}
				log.Info("reconfigured from file", "bodies", next.Sim.Bodies)
			}
			if restart {
				log.Info("config changed; restart to apply settings other than sim.bodies")
			}
			current = next
		}
	}
}

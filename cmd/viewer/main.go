// Command viewer draws the simulation from the side and lets you change the
// body count. It runs the simulation in-process unless -addr points it at a
// boxfalld server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/milk9111/boxfall/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config overlaying the built-in defaults")
		addr       = flag.String("addr", "", "websocket URL of a boxfalld server, e.g. ws://localhost:8080/ws")
		bodies     = flag.Int("bodies", -1, "initial body count (overrides sim.bodies)")
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
	if *bodies >= 0 {
		cfg.Sim.Bodies = *bodies
	}

	var src source
	if *addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		src, err = newRemoteSource(ctx, *addr, logger)
		cancel()
	} else {
		src, err = newLocalSource(cfg, logger)
	}
	if err != nil {
		logger.Error("start simulation", "err", err)
		os.Exit(1)
	}
	defer src.Close()

	game := NewGame(src, cfg.Physics.Ground.Spec(), cfg.Physics.Box.Spec(), cfg.Sim.Bodies, logger)
	game.request(cfg.Sim.Bodies)

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(baseWidth, baseHeight)
	ebiten.SetWindowTitle("boxfall")

	if err := ebiten.RunGame(game); err != nil {
		logger.Error("viewer", "err", err)
	}
}

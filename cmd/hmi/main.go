package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/ohowland/powersim/internal/pkg/config"
	"github.com/ohowland/powersim/internal/pkg/hmi"
	"github.com/ohowland/powersim/internal/pkg/msg"
	"github.com/ohowland/powersim/internal/pkg/sim"
	"github.com/ohowland/powersim/internal/pkg/snapshot"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	logPath := flag.String("log", "powersim-hmi.log", "log file; the terminal is taken by the dashboard")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal := zerolog.New(os.Stderr)
		fatal.Fatal().Err(err).Msg("load config")
	}
	f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fatal := zerolog.New(os.Stderr)
		fatal.Fatal().Err(err).Msg("open log")
	}
	defer f.Close()
	cfg.Log.Console = false
	log, err := config.NewLoggerTo(cfg.Log, f)
	if err != nil {
		fatal := zerolog.New(os.Stderr)
		fatal.Fatal().Err(err).Msg("build logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := sim.New(sim.Options{Passes: cfg.Sim.Passes, Ordering: sim.Ordering(cfg.Sim.Ordering), Logger: log})
	if cfg.Sim.Snapshot != "" {
		doc, err := snapshot.ReadFile(cfg.Sim.Snapshot)
		if err == nil {
			err = engine.Import(doc)
		}
		if err != nil {
			log.Fatal().Err(err).Msg("restore snapshot")
		}
	} else if err := engine.LoadSeed(); err != nil {
		log.Fatal().Err(err).Msg("load seed")
	}

	system := msg.NewPublisher(uuid.New())
	defer system.Close()
	runner := sim.NewRunner(engine, cfg.Sim.Tick, system, nil, log)

	dash, err := hmi.New(engine, system)
	if err != nil {
		log.Fatal().Err(err).Msg("build dashboard")
	}
	go runner.Run(ctx)
	if err := dash.Run(ctx); err != nil {
		log.Error().Err(err).Msg("dashboard")
	}
}

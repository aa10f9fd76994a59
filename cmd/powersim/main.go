package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/powersim/internal/pkg/cloud"
	"github.com/ohowland/powersim/internal/pkg/comm/modbuscomm"
	"github.com/ohowland/powersim/internal/pkg/config"
	"github.com/ohowland/powersim/internal/pkg/database/mongodb"
	"github.com/ohowland/powersim/internal/pkg/database/sqldb"
	"github.com/ohowland/powersim/internal/pkg/datastreams/kafka"
	"github.com/ohowland/powersim/internal/pkg/datastreams/mqtt"
	"github.com/ohowland/powersim/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/powersim/internal/pkg/gridmonitor"
	"github.com/ohowland/powersim/internal/pkg/metrics"
	"github.com/ohowland/powersim/internal/pkg/msg"
	"github.com/ohowland/powersim/internal/pkg/sim"
	"github.com/ohowland/powersim/internal/pkg/snapshot"
	"github.com/ohowland/powersim/internal/pkg/webservice"
	"github.com/rs/zerolog"
)

// process is a long-running observer started alongside the simulation.
type process func(ctx context.Context) error

func main() {
	configPath := flag.String("config", "", "path to a config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal := zerolog.New(os.Stderr)
		fatal.Fatal().Err(err).Msg("load config")
	}
	log, err := config.NewLogger(cfg.Log)
	if err != nil {
		fatal := zerolog.New(os.Stderr)
		fatal.Fatal().Err(err).Msg("build logger")
	}
	log.Info().Msg("starting powersim")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := buildEngine(cfg.Sim, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	exporter := metrics.NewExporter()
	system := msg.NewPublisher(uuid.New())
	defer system.Close()
	runner := sim.NewRunner(engine, cfg.Sim.Tick, system, exporter, log)

	store, procs, err := buildIntegrations(ctx, cfg, engine, system, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build integrations")
	}

	app := &webservice.App{
		Engine:    engine,
		Runner:    runner,
		Exporter:  exporter,
		Store:     store,
		Publisher: system,
		Logger:    log,
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func(p process) {
			defer wg.Done()
			if err := p(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("process exited")
			}
		}(p)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Run(ctx)
	}()

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	wg.Wait()
	log.Info().Msg("stopped")
}

func buildEngine(cfg config.Sim, log zerolog.Logger) (*sim.Engine, error) {
	engine := sim.New(sim.Options{
		Passes:   cfg.Passes,
		Ordering: sim.Ordering(cfg.Ordering),
		Logger:   log,
	})
	switch {
	case cfg.Snapshot != "":
		doc, err := snapshot.ReadFile(cfg.Snapshot)
		if err != nil {
			return nil, err
		}
		if err := engine.Import(doc); err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.Snapshot).Uint64("tick", doc.Tick).Msg("snapshot restored")
	case cfg.Seed:
		if err := engine.LoadSeed(); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

// buildIntegrations picks the snapshot store and starts an observer for
// every configured external system.
func buildIntegrations(ctx context.Context, cfg config.Config, engine *sim.Engine, system *msg.PubSub, log zerolog.Logger) (snapshot.Store, []process, error) {
	var (
		store snapshot.Store = snapshot.FileStore{Dir: cfg.Sim.SnapshotDir}
		procs []process
	)

	if cfg.SQL.DSN != "" {
		db, err := sqldb.Open(ctx, cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, nil, err
		}
		store = sqldb.NewRepository(db)
		h, err := sqldb.New(db, system, log)
		if err != nil {
			return nil, nil, err
		}
		procs = append(procs, func(ctx context.Context) error {
			h.Process(ctx)
			return db.Close()
		})
		log.Info().Str("driver", cfg.SQL.Driver).Msg("sql store enabled")
	} else if cfg.AWS.Bucket != "" {
		s3, err := cloud.NewS3Store(ctx, cfg.AWS.Region, cfg.AWS.Bucket)
		if err != nil {
			return nil, nil, err
		}
		store = s3
		log.Info().Str("bucket", cfg.AWS.Bucket).Msg("s3 store enabled")
	}

	if cfg.AWS.TopicArn != "" {
		n, err := cloud.NewNotifier(ctx, cfg.AWS.Region, cfg.AWS.TopicArn, system, log)
		if err != nil {
			return nil, nil, err
		}
		procs = append(procs, n.Process)
	}
	if cfg.Mongo.URI != "" {
		h, err := mongodb.New(cfg.Mongo.URI, cfg.Mongo.Database, system, log)
		if err != nil {
			return nil, nil, err
		}
		procs = append(procs, h.Process)
	}
	if cfg.NATS.URL != "" {
		h, err := natshandler.New(cfg.NATS.URL, system, log)
		if err != nil {
			return nil, nil, err
		}
		procs = append(procs, h.Process)
	}
	if cfg.MQTT.Broker != "" {
		h, err := mqtt.New(cfg.MQTT.Broker, cfg.MQTT.Topic, system, log)
		if err != nil {
			return nil, nil, err
		}
		procs = append(procs, h.Process)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		h, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, system, log)
		if err != nil {
			return nil, nil, err
		}
		procs = append(procs, h.Process)
	}
	if cfg.Modbus.Addr != "" {
		poller := modbuscomm.NewPoller(modbuscomm.PollerConfig{
			Addr:    cfg.Modbus.Addr,
			SlaveID: cfg.Modbus.SlaveID,
			Timeout: cfg.Modbus.PollRate,
		}, log)
		reg := modbuscomm.Register{
			Name:     "grid",
			Address:  cfg.Modbus.Register,
			DataType: modbuscomm.DataType(cfg.Modbus.DataType),
			Access:   modbuscomm.ReadOnly,
		}
		m, err := gridmonitor.New(poller, engine, reg, cfg.Modbus.Threshold, cfg.Modbus.PollRate, log)
		if err != nil {
			return nil, nil, err
		}
		procs = append(procs, m.Run)
	}
	return store, procs, nil
}

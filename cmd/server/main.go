package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fenrir/api/ws"
	"fenrir/config"
	"fenrir/engine"
	"fenrir/infra/kafka"
	"fenrir/infra/outbox"
	"fenrir/jobs/broadcaster"
	"fenrir/logging"
	"fenrir/metrics"
	"fenrir/report"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	// ---------------- Reporting pipeline ----------------

	ob, err := outbox.Open(cfg.Outbox.Dir)
	if err != nil {
		log.Fatal("outbox open failed", zap.Error(err))
	}
	defer ob.Close()

	var ticks *kafka.TickProducer
	if cfg.Kafka.Enabled {
		ticks = kafka.NewTickProducer(cfg.Kafka.Brokers, cfg.Kafka.TicksTopic)
		defer ticks.Close()
	}

	// The gateway is also a reporter but needs the engine to exist
	// first; bind it through the relay after construction.
	relay := &report.Relay{}
	reporters := report.Fanout{
		report.NewDurable(ob, ticks, log.Named("durable")),
		report.Log{L: log.Named("exec")},
		relay,
	}

	// ---------------- Engine ----------------

	eng, err := engine.New(engine.Config{
		SymbolGroups:    cfg.Engine.SymbolGroups,
		QueueDepth:      cfg.Engine.QueueDepth,
		DrainOnShutdown: cfg.Engine.DrainOnShutdown,
	}, reporters, log.Named("engine"), m)
	if err != nil {
		log.Fatal("engine init failed", zap.Error(err))
	}

	gateway := ws.NewServer(eng, log.Named("ws"))
	relay.Set(gateway)

	// ---------------- Background jobs ----------------

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bc *broadcaster.Broadcaster
	if cfg.Kafka.Enabled {
		bc, err = broadcaster.New(
			ob,
			cfg.Kafka.Brokers,
			cfg.Kafka.ReportsTopic,
			time.Duration(cfg.Outbox.ScanIntervalMs)*time.Millisecond,
			time.Duration(cfg.Outbox.ResendAfterMs)*time.Millisecond,
			log.Named("broadcaster"),
		)
		if err != nil {
			log.Fatal("broadcaster init failed", zap.Error(err))
		}
		bc.Start(ctx)
	}

	// ---------------- HTTP ----------------

	mux := http.NewServeMux()
	mux.Handle("/ws", gateway)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server exited", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	// Stop intake first, then the engine, then the delivery tail.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	gateway.Close()
	eng.Shutdown()
	if bc != nil {
		_ = bc.Close()
	}
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/emission-explorer/internal/app"
	"github.com/mohammed-shakir/emission-explorer/internal/core/config"
	"github.com/mohammed-shakir/emission-explorer/internal/core/health"
	"github.com/mohammed-shakir/emission-explorer/internal/core/observability"
	"github.com/mohammed-shakir/emission-explorer/internal/core/router"
	"github.com/mohammed-shakir/emission-explorer/internal/core/server"
	"github.com/mohammed-shakir/emission-explorer/internal/extract"
	"github.com/mohammed-shakir/emission-explorer/internal/logger"
	"github.com/mohammed-shakir/emission-explorer/internal/metrics"
	"github.com/mohammed-shakir/emission-explorer/internal/queryevents"
	"github.com/mohammed-shakir/emission-explorer/internal/scenarios"
	_ "github.com/mohammed-shakir/emission-explorer/internal/scenarios/baseline"
	_ "github.com/mohammed-shakir/emission-explorer/internal/scenarios/cache"
	"github.com/mohammed-shakir/emission-explorer/pkg/invalidation/kafka"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	scenarioFlag := flag.String("scenario", "", "scenario name ("+strings.Join(scenarios.Names(), "|")+")")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	// a missing .env is fine; real env vars win over the file
	_ = godotenv.Load(*envFile)

	cfg := config.FromEnv()
	if *scenarioFlag != "" {
		cfg.Scenario = strings.TrimSpace(*scenarioFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Scenario:  cfg.Scenario,
		Component: "explorer",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	p := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	observability.Init(p.Registerer())
	observability.SetScenario(cfg.Scenario)

	appLog.Info("starting explorer",
		"addr", cfg.Addr,
		"version", Version,
		"store", cfg.StoreDriver,
		"scenario", cfg.Scenario)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		appLog.Error("store setup failed", "err", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	resolver, err := app.OpenRegions(cfg, appLog)
	if err != nil {
		appLog.Error("regions setup failed", "err", err)
		return 1
	}

	ready := []health.Check{{Name: "store", Fn: st.Ping}}
	deps := scenarios.Deps{Extractor: extract.New(st, appLog)}

	if app.NeedsCache(cfg) {
		rc, cli, err := app.OpenResults(ctx, cfg, appLog)
		if err != nil {
			appLog.Error("cache setup failed", "err", err)
			return 1
		}
		defer func() { _ = cli.Close() }()
		deps.Cache = rc
		ready = append(ready, health.Check{Name: "redis", Fn: cli.Ping})

		icfg := kafka.FromEnv()
		icfg.Enabled = cfg.Invalidation.Enabled
		icfg.Driver = kafka.Driver(strings.ToLower(cfg.Invalidation.Driver))
		icfg.Topic = cfg.Invalidation.Topic
		icfg.GroupID = cfg.Invalidation.GroupID
		icfg.Brokers = config.Brokers(cfg.Invalidation.Brokers)

		inv := kafka.New(icfg, rc, kafka.Options{Logger: appLog, Register: p.Registerer()})
		if err := inv.Start(ctx); err != nil {
			appLog.Error("invalidation runner failed to start", "err", err)
			return 1
		}
		defer inv.Stop()
		if icfg.Active() {
			ready = append(ready, health.FromReporter("invalidation", inv))
		}
	}

	if cfg.Events.Enabled {
		pub, err := queryevents.NewPublisher(config.Brokers(cfg.Events.Brokers), cfg.Events.Topic, cfg.Events.QueueSize, appLog)
		if err != nil {
			appLog.Error("query events setup failed", "err", err)
			return 1
		}
		defer func() { _ = pub.Close() }()
		deps.Observers = append(deps.Observers, pub.WithScenario(cfg.Scenario))
	}

	runner, err := scenarios.New(cfg.Scenario, cfg, appLog, deps)
	if err != nil {
		appLog.Error("scenario setup failed", "err", err)
		return 1
	}

	api := router.New(runner, resolver, router.Defaults{Resolution: cfg.DefaultResolution}, appLog)
	opts := server.Options{API: api, Ready: ready}
	if p.Enabled() {
		opts.Metrics = p.Handler()
	}

	if err := server.Run(ctx, cfg, appLog, opts); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

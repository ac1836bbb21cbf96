package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TrendScope/internal/analysis"
	"TrendScope/internal/api"
	"TrendScope/internal/collector"
	"TrendScope/internal/config"
	"TrendScope/internal/llm"
	"TrendScope/internal/logger"
	"TrendScope/internal/narrative"
	"TrendScope/internal/notifier"
	"TrendScope/internal/scheduler"
	"TrendScope/internal/store"
	"TrendScope/internal/trend"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

func main() {
	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}
	cfgPath := flag.String("config", defaultCfg, "path to config file")
	ticker := flag.String("ticker", "", "analyze one ticker, print JSON and exit")
	years := flag.Int("years", 0, "years of history for -ticker (default analysis.default_years)")
	withNarrative := flag.Bool("narrative", false, "include the generated narrative with -ticker")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	barStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Warn("price cache unavailable, continuing without it", zap.String("backend", cfg.Cache.Backend), zap.Error(err))
		barStore = store.NewNoopStore()
	}
	defer barStore.Close()

	fetcher := collector.NewCachedFetcher(buildFetcher(cfg, log), barStore, log)
	log.Info("data source ready", zap.String("fetcher", fetcher.Name()))

	engine, err := trend.NewEngine(trend.Options{
		WindowMonths: cfg.Analysis.WindowMonths,
		StepMonths:   cfg.Analysis.StepMonths,
		Parallel:     cfg.Analysis.ParallelWindows,
	}, log)
	if err != nil {
		log.Fatal("init trend engine", zap.Error(err))
	}

	var narrator analysis.Narrator
	if orch, err := buildOrchestrator(cfg, log); err != nil {
		log.Warn("narrative generation disabled", zap.Error(err))
	} else {
		narrator = orch
	}

	svc := analysis.NewService(fetcher, engine, narrator, analysis.Options{
		Benchmarks:       cfg.Analysis.Benchmarks,
		DefaultBenchmark: cfg.Analysis.DefaultBench,
	}, log)

	if *ticker != "" {
		if *years == 0 {
			*years = cfg.Analysis.DefaultYears
		}
		if err := runOnce(ctx, svc, *ticker, *years, *withNarrative); err != nil {
			log.Error("analysis failed", zap.String("ticker", *ticker), zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		return
	}

	runDaemon(ctx, cfg, svc, log)
}

func runOnce(ctx context.Context, svc *analysis.Service, ticker string, years int, withNarrative bool) error {
	var (
		result any
		err    error
	)
	if withNarrative {
		result, err = svc.RunFullAnalysis(ctx, ticker, years)
	} else {
		result, err = svc.RunAnalysis(ctx, ticker, years)
	}
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}

func runDaemon(ctx context.Context, cfg *config.Config, svc *analysis.Service, log *zap.Logger) {
	log.Info("TrendScope starting")

	server := api.NewServer(api.ServerConfig{
		Addr:           cfg.Server.Addr,
		DefaultYears:   cfg.Analysis.DefaultYears,
		ProductionMode: cfg.Log.Level != "debug",
		RequestTimeout: 5 * time.Minute,
	}, svc, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Error("http server stopped", zap.Error(err))
		}
	}()

	if cfg.TelegramEnabled() {
		tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)

		sched := scheduler.NewScheduler(ctx, svc, tn, cfg.Schedule.Watchlist, cfg.Analysis.DefaultYears, log)
		if err := sched.RegisterAll(cfg.Schedule.ReportCron); err != nil {
			log.Fatal("register cron tasks", zap.Error(err))
		}
		sched.Start()
		defer sched.Stop()

		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")

		if os.Getenv("RUN_ON_START") == "true" {
			log.Info("RUN_ON_START enabled, running watchlist report now")
			go sched.RunReportNow()
		}
	} else {
		log.Info("telegram not configured, scheduler and commands disabled")
	}

	log.Info("TrendScope is running, press Ctrl+C to stop", zap.String("addr", cfg.Server.Addr))
	<-ctx.Done()

	log.Info("shutdown signal received, stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error("http shutdown", zap.Error(err))
	}
	log.Info("TrendScope stopped")
}

func buildStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.BarStore, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Cache.SQLitePath, cfg.Cache.TTL, log)
	case "redis":
		return store.NewRedisStore(ctx, store.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			TTL:      cfg.Cache.TTL,
		}, log)
	default:
		return store.NewNoopStore(), nil
	}
}

func buildFetcher(cfg *config.Config, log *zap.Logger) collector.Fetcher {
	switch cfg.DataSource.Provider {
	case "rest":
		return collector.NewRESTFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	case "synthetic":
		return collector.NewSyntheticFetcher()
	default:
		return collector.NewYahooFetcher(cfg.Proxy, cfg.DataSource.RequestInterval, log)
	}
}

func buildOrchestrator(cfg *config.Config, log *zap.Logger) (*narrative.Orchestrator, error) {
	router, err := llm.NewRouter(cfg.LLM.Router(), log)
	if err != nil {
		return nil, err
	}
	return narrative.NewOrchestrator(router, narrative.Options{
		Parallel: cfg.LLM.Parallel,
		Models:   cfg.LLM.Steps(),
	}, log)
}

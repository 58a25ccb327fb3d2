package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/agenthands/synergy/internal/config"
	"github.com/agenthands/synergy/internal/core"
	"github.com/agenthands/synergy/internal/driver"
	"github.com/agenthands/synergy/internal/llm"
	"github.com/agenthands/synergy/internal/logger"
	"github.com/agenthands/synergy/internal/perspective"
	"github.com/agenthands/synergy/internal/platform"
	"github.com/agenthands/synergy/internal/server"
	sig "github.com/agenthands/synergy/internal/signal"
)

const defaultConfigPath = "config/config.toml"

func main() {
	configPath := pflag.String("config", "", "path to the TOML config file")
	port := pflag.String("port", "", "HTTP port (overrides PORT)")
	logMode := pflag.String("log", "dev", "log mode: dev or prod")
	pflag.Parse()

	log, err := logger.New(*logMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using environment")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}
	if cfg.Agent.DID == "" {
		cfg.Agent.DID = "did:synergy:" + uuid.New().String()
	}
	log = log.With("agent", cfg.Agent.DID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	neighbourhood, closeNeighbourhood := openNeighbourhood(ctx, cfg, log)
	defer closeNeighbourhood()

	deps := core.Deps{
		Store:         store,
		Agent:         platform.StaticAgent{DID: cfg.Agent.DID, Model: cfg.Agent.DefaultModel},
		Neighbourhood: neighbourhood,
	}
	if cfg.LLM.Provider != "" {
		client, embedder, err := llm.NewClient(ctx, cfg.LLM, log)
		if err != nil {
			log.Fatal("failed to create LLM client", "error", err)
		}
		runner := llm.NewTaskRunner(client, embedder)
		deps.AI = runner
		if embedder != nil {
			deps.Embedder = runner
		}
	} else if cfg.Agent.DefaultModel != "" {
		log.Warn("default model set without an LLM provider, processing is disabled")
		cfg.Agent.DefaultModel = ""
		deps.Agent = platform.StaticAgent{DID: cfg.Agent.DID}
	}

	syn := core.NewSynergy(deps, cfg.Synergy, cfg.Prompts.SynergyTask, log)
	defer syn.Close()

	poller := cron.New()
	for _, channel := range cfg.Synergy.Channels {
		if _, err := poller.AddFunc(cfg.Synergy.PollSchedule, func() { check(ctx, syn, channel, log) }); err != nil {
			log.Fatal("invalid poll schedule", "schedule", cfg.Synergy.PollSchedule, "error", err)
		}
	}
	poller.Start()
	defer poller.Stop()

	if *port == "" {
		*port = os.Getenv("PORT")
	}
	if *port == "" {
		*port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + *port,
		Handler: server.NewServer(syn, log).SetupRouter(),
	}
	go func() {
		log.Info("Starting server", "port", *port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (platform.LinkStore, func()) {
	if cfg.Memgraph.URI != "" {
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, log)
		if err == nil {
			if err := d.BuildIndices(ctx); err != nil {
				log.Warn("failed to build indices", "error", err)
			}
			return perspective.NewMemgraph(d, cfg.Redis.Neighbourhood, cfg.Agent.DID), func() {
				_ = d.Close(context.Background())
			}
		}
		log.Warn("Memgraph unavailable, using in-memory replica", "error", err)
	}
	replica, err := perspective.NewReplica(cfg.Agent.DID)
	if err != nil {
		log.Fatal("failed to create replica", "error", err)
	}
	return replica, func() {}
}

type closableNeighbourhood interface {
	platform.Neighbourhood
	Close() error
}

func openNeighbourhood(ctx context.Context, cfg *config.Config, log *logger.Logger) (platform.Neighbourhood, func()) {
	var n closableNeighbourhood
	if cfg.Redis.Addr != "" {
		r, err := sig.NewRedis(ctx, sig.RedisOptions{
			Addr:          cfg.Redis.Addr,
			Password:      cfg.Redis.Password,
			DB:            cfg.Redis.DB,
			Neighbourhood: cfg.Redis.Neighbourhood,
			DID:           cfg.Agent.DID,
		}, log)
		if err == nil {
			n = r
		} else {
			log.Warn("Redis unavailable, running as a single agent", "error", err)
		}
	}
	if n == nil {
		n = sig.NewHub().Join(cfg.Agent.DID)
	}
	return n, func() { _ = n.Close() }
}

func check(ctx context.Context, syn *core.Synergy, channel string, log *logger.Logger) {
	coord, err := syn.Coordinator(channel)
	if err != nil {
		return
	}
	res, err := coord.RunProcessingCheck(ctx)
	if err != nil {
		log.Error("processing check failed", "channel", channel, "error", err)
		return
	}
	if len(res.Processed) > 0 {
		log.Info("processed items", "channel", channel, "count", len(res.Processed), "conversation", res.ConversationID)
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voxloop/voxloop/internal/api"
	"github.com/voxloop/voxloop/internal/automation"
	"github.com/voxloop/voxloop/internal/baseline"
	"github.com/voxloop/voxloop/internal/config"
	"github.com/voxloop/voxloop/internal/dedup"
	"github.com/voxloop/voxloop/internal/digest"
	"github.com/voxloop/voxloop/internal/events"
	"github.com/voxloop/voxloop/internal/history"
	"github.com/voxloop/voxloop/internal/llm"
	"github.com/voxloop/voxloop/internal/messaging"
	"github.com/voxloop/voxloop/internal/metrics"
	"github.com/voxloop/voxloop/internal/pipeline"
	"github.com/voxloop/voxloop/internal/reasoning"
	"github.com/voxloop/voxloop/internal/registry"
	"github.com/voxloop/voxloop/internal/seed"
	"github.com/voxloop/voxloop/internal/synth"
	"github.com/voxloop/voxloop/internal/tuning"
	"github.com/voxloop/voxloop/internal/version"
	"github.com/voxloop/voxloop/internal/voice"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		os.Exit(0)
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: voxloop -config <file>")
		os.Exit(2)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("voxloop: %v", err)
	}
}

func run(cfg *config.Config) error {
	log.Printf("voxloop: %s", version.Get())

	// Persistence.
	var db *history.DB
	if cfg.DataDir != "" {
		opened, err := history.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("opening history database: %w", err)
		}
		db = opened
		defer func() { _ = db.Close() }()
	}
	store := history.NewStore(db)
	if err := store.Load(); err != nil {
		return err
	}
	log.Printf("voxloop: loaded %d improvement records", store.Len())

	// External collaborators.
	voiceClient := voice.NewClient(cfg.Voice.BaseURL, cfg.Voice.APIKey, cfg.Voice.PhoneNumberID)
	tuner := tuning.NewAdapter(voiceClient)
	deployer := automation.NewDeployer(cfg.Automation.BaseURL, cfg.Automation.APIKey)
	index := automation.NewIndex()
	gateway := messaging.NewGateway(cfg.Messaging.BaseURL, cfg.Messaging.APIKey, cfg.Messaging.OperatorChannel)

	backend, err := llm.New(cfg.Reasoning)
	if err != nil {
		return fmt.Errorf("configuring reasoning backend: %w", err)
	}
	analyzer := reasoning.NewGateway(backend, cfg.Reasoning.Model, cfg.Reasoning.MaxTokens)

	// Capability surface.
	reg := registry.New()
	trusted := synth.NewGatewayContext(gateway, index)
	seed.Register(reg, trusted)
	synthesizer := synth.New(trusted)

	// Dedup: redis when configured, process-local otherwise.
	var marker dedup.Marker
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		marker = dedup.NewRedis(rdb, dedup.DefaultTTL)
		log.Printf("voxloop: outcome dedup via redis at %s", cfg.Redis.Addr)
	} else {
		marker = dedup.NewMemory()
	}

	mets := metrics.New()
	broker := events.NewBroker()

	pipe := pipeline.New(pipeline.Deps{
		Voice:       voiceClient,
		Tuner:       tuner,
		Registry:    reg,
		Synth:       synthesizer,
		Deployer:    deployer,
		Index:       index,
		Gateway:     analyzer,
		Messenger:   gateway,
		History:     store,
		Metrics:     mets,
		Events:      broker,
		ProfileID:   cfg.Voice.ProfileID,
		SettleDelay: cfg.Pipeline.SettleDelay,
	})
	runner := pipeline.NewRunner(pipe.Run)

	base, err := baseline.Load(cfg.Baseline.File)
	if err != nil {
		return err
	}
	baselineMgr := baseline.NewManager(base, tuner, reg, store)

	dig := digest.New(store, gateway)
	if err := dig.Start(cfg.Digest.Schedule); err != nil {
		return err
	}
	defer dig.Stop()

	server := api.NewServer(api.Deps{
		Runner:         runner,
		Registry:       reg,
		History:        store,
		Baseline:       baselineMgr,
		Voice:          voiceClient,
		Dedup:          marker,
		Events:         broker,
		Metrics:        mets.Handler(),
		ProfileID:      cfg.Voice.ProfileID,
		TriggerReasons: cfg.Pipeline.TriggerReasons,
		CallTimeout:    cfg.Pipeline.CallTimeout,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: server.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("voxloop: listening on %s", cfg.Server.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Printf("voxloop: shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("voxloop: http shutdown: %v", err)
	}

	// Let in-flight improvement runs finish before closing the database.
	runner.Wait()
	return nil
}

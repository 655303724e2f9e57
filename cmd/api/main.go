package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/b2b-storefront/internal/api"
	"github.com/example/b2b-storefront/internal/auth"
	"github.com/example/b2b-storefront/internal/backend"
	"github.com/example/b2b-storefront/internal/catalog"
	"github.com/example/b2b-storefront/internal/config"
	"github.com/example/b2b-storefront/internal/domain/cart"
	"github.com/example/b2b-storefront/internal/infrastructure/kafka"
	"github.com/example/b2b-storefront/internal/infrastructure/store"
	"github.com/example/b2b-storefront/internal/repository"
	"github.com/example/b2b-storefront/internal/session"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[API] %v", err)
	}

	flowCfg, err := catalog.LoadConfig(cfg.FlowConfigPath)
	if err != nil {
		log.Fatalf("[API] Failed to load flow configuration: %v", err)
	}

	log.Println("[API] ========================================")
	log.Println("[API] B2B Storefront BFF")
	log.Println("[API] ========================================")
	log.Printf("[API] Backend: %s", cfg.BackendURL)
	log.Printf("[API] State store: %s", cfg.StateStore)
	log.Printf("[API] Kafka: %v", cfg.KafkaBrokers)

	kv, closeStore := openStore(ctx, cfg)
	defer closeStore()

	// Product source
	client := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, backend.WithRateLimit(cfg.BackendRPS, int(cfg.BackendRPS)+1))
	repo := repository.New(client, cfg.CatalogCacheTTL)

	refresher, err := repository.NewRefresher(repo, cfg.CatalogRefreshCron, cfg.BackendTimeout, cfg.BackendServiceToken)
	if err != nil {
		log.Fatalf("[API] %v", err)
	}
	refresher.Start()
	defer refresher.Stop()

	// Cart sync: Kafka when configured, key-value fallback always
	var sink cart.Sink
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		sink = cart.NewEventSink(producer)
	}
	syncer := cart.NewSyncer(sink, kv, cfg.CartSyncDelay)
	carts := cart.NewService(syncer, cfg.CartTiers)

	sessions := session.NewManager(flowCfg, repo, kv, cfg.LoadTimeout)

	sweeper := cron.New()
	sweeper.AddFunc("@every 1m", func() { sessions.Sweep(cfg.SessionIdleTimeout) })
	sweeper.Start()
	defer sweeper.Stop()

	// Catalog invalidation events
	var wg sync.WaitGroup
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaInvalidationTopic != "" {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaInvalidationTopic, "storefront-bff")
		defer consumer.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Println("[API] Starting Kafka consumer (catalog invalidation)...")
			if err := consumer.Consume(ctx, repo.HandleCatalogChanged); err != nil && ctx.Err() == nil {
				log.Printf("[API] Invalidation consumer error: %v", err)
			}
		}()
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTAccessTTL)
	handlers := api.NewHandlers(sessions, carts, repo, cfg.DefaultIVA)
	router := api.NewRouter(handlers, jwtService, cfg.WebDir)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[API] Server started on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[API] Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[API] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	// Pending cart edits must reach the store before exit.
	syncer.Flush(shutdownCtx)
	wg.Wait()
}

// openStore connects the key-value backend chosen by STATE_STORE.
func openStore(ctx context.Context, cfg *config.Config) (store.KVStore, func()) {
	switch cfg.StateStore {
	case config.StorePostgres:
		db, err := store.ConnectPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[API] Failed to connect to PostgreSQL: %v", err)
		}
		kv, err := store.NewPostgresKVStore(ctx, db)
		if err != nil {
			log.Fatalf("[API] %v", err)
		}
		log.Println("[API] Connected to PostgreSQL")
		return kv, func() { db.Close() }
	case config.StoreRedis:
		client, err := store.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPass)
		if err != nil {
			log.Fatalf("[API] %v", err)
		}
		log.Println("[API] Connected to Redis")
		return store.NewRedisKVStore(client, "storefront:", cfg.StateTTL), func() { client.Close() }
	default:
		return store.NewMemoryKVStore(), func() {}
	}
}

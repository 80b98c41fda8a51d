package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/taleforge/internal/analysis/narrative"
	"github.com/zhouzirui/taleforge/internal/config"
	"github.com/zhouzirui/taleforge/internal/handler"
	"github.com/zhouzirui/taleforge/internal/logger"
	assetModel "github.com/zhouzirui/taleforge/internal/model/asset"
	"github.com/zhouzirui/taleforge/internal/service/ai"
	assetService "github.com/zhouzirui/taleforge/internal/service/asset"
	"github.com/zhouzirui/taleforge/internal/service/chat"
	"github.com/zhouzirui/taleforge/internal/service/turn"
	"github.com/zhouzirui/taleforge/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding})
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	if envErr != nil {
		log.Warn("failed to load .env file, continuing with system environment only", zap.Error(envErr))
	}

	provider, err := newProvider(ctx, cfg.AI)
	if err != nil {
		log.Fatal("failed to initialize narrator provider", zap.String("provider", cfg.AI.Provider), zap.Error(err))
	}
	if !cfg.AI.Enabled() {
		log.Warn("narrator credentials incomplete, upstream calls will likely fail", zap.String("provider", cfg.AI.Provider))
	}

	completions := ai.NewClient(provider, ai.ClientConfig{
		MaxAttempts: cfg.AI.MaxAttempts,
		BaseDelay:   cfg.AI.BaseRetryDelay,
		Timeout:     cfg.AI.Timeout,
		MaxTokens:   cfg.AI.MaxTokens,
	}, ai.WithLogger(log))

	var store assetModel.Store
	assetStore, err := sqlite.Open(cfg.Assets.DBPath)
	if err != nil {
		log.Warn("asset table unavailable, every image resolves to the placeholder",
			zap.String("path", cfg.Assets.DBPath), zap.Error(err))
		store = assetModel.NewMemoryStore(nil)
	} else {
		defer func() { _ = assetStore.Close() }()
		store = assetStore
	}

	sessions := chat.NewService(
		chat.WithDirective(ai.BaseDirective),
		chat.WithRetain(cfg.Game.HistoryRetain),
	)

	rng := newLockedRand()

	parserCfg := narrative.DefaultConfig()
	parserCfg.BannedPhrases = append(parserCfg.BannedPhrases, cfg.Game.ExtraBannedPhrases()...)
	parserCfg.MinOptionWords = cfg.Game.MinOptionWords
	parserCfg.MinOptions = cfg.Game.MinOptions
	parserCfg.MaxOptions = cfg.Game.MaxOptions
	if len(cfg.Game.FallbackOptions) > 0 {
		parserCfg.FallbackOptions = cfg.Game.FallbackOptions
	}
	parserCfg.Rand = rng

	turns := turn.NewService(turn.Dependencies{
		Sessions:      sessions,
		Prompts:       ai.NewPromptBuilder(cfg.Game.NPCProbability, rng),
		Completer:     completions,
		Parser:        narrative.New(parserCfg),
		Resolver:      assetService.NewResolver(store, log),
		Logger:        log,
		HistoryWindow: cfg.Game.HistoryWindow,
	})

	if cfg.Server.SessionTTL > 0 {
		go sweepSessions(ctx, sessions, cfg.Server, log)
	}

	router := handler.NewRouter(handler.Dependencies{
		Sessions:       sessions,
		Player:         turns,
		AssetURL:       cfg.Assets.URL,
		AssetDir:       cfg.Assets.Dir,
		AssetPrefix:    cfg.Assets.BaseURL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})

	startServer(ctx, cfg.Server, router, log)
}

func newProvider(ctx context.Context, cfg config.AIConfig) (ai.Provider, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout + 5*time.Second}

	switch cfg.Provider {
	case config.ProviderArk:
		m, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, err
		}
		return ai.NewChatModelProvider(config.ProviderArk, m), nil
	case config.ProviderOllama:
		return ai.NewOllamaProvider(cfg.BaseURL, cfg.Model, httpClient)
	default:
		return ai.NewOpenAIProvider(ai.OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			HTTPClient: httpClient,
		}), nil
	}
}

func sweepSessions(ctx context.Context, sessions *chat.Service, cfg config.ServerConfig, log *zap.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.EvictIdle(cfg.SessionTTL); n > 0 {
				log.Info("evicted idle sessions", zap.Int("count", n), zap.Int("remaining", sessions.Len()))
			}
		}
	}
}

// lockedRand shares one generator between the prompt builder and the parser.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newLockedRand() *lockedRand {
	return &lockedRand{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

func (r *lockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.IntN(n)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("taleforge listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/normtext/lawdex/internal/config"
	dbRedis "github.com/normtext/lawdex/internal/db/redis"
	"github.com/normtext/lawdex/internal/domain"
	"github.com/normtext/lawdex/internal/index"
	logpkg "github.com/normtext/lawdex/internal/logger"
	"github.com/normtext/lawdex/internal/metrics"
	embeddingrepo "github.com/normtext/lawdex/internal/repository/embedding"
	lawrepo "github.com/normtext/lawdex/internal/repository/law"
	leaserepo "github.com/normtext/lawdex/internal/repository/lease"
	queryrepo "github.com/normtext/lawdex/internal/repository/query"
	"github.com/normtext/lawdex/internal/textproc"
	chiTransport "github.com/normtext/lawdex/internal/transport/chi"
	openaiTransport "github.com/normtext/lawdex/internal/transport/openai"
	embeddinguc "github.com/normtext/lawdex/internal/usecase/embedding"
	healthuc "github.com/normtext/lawdex/internal/usecase/health"
	ingestuc "github.com/normtext/lawdex/internal/usecase/ingest"
	keywordsuc "github.com/normtext/lawdex/internal/usecase/keywords"
	ratinguc "github.com/normtext/lawdex/internal/usecase/rating"
	searchuc "github.com/normtext/lawdex/internal/usecase/search"
	"github.com/normtext/lawdex/internal/version"
)

func main() {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	app, err := newApp(&cfg, logger)
	if err != nil {
		logger.Fatal("Failed to assemble application", zap.Error(err))
	}
	defer app.store.Close()

	if len(os.Args) > 1 && os.Args[1] == "ingest" {
		if len(os.Args) < 3 {
			logger.Fatal("Usage: lawdex ingest <laws.json>")
		}
		if err := app.runIngest(context.Background(), os.Args[2]); err != nil {
			logger.Fatal("Ingest failed", zap.Error(err))
		}
		return
	}

	app.serve(env)
}

// app holds the composed services, shared between serve and ingest modes.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	store *dbRedis.Store

	searchSvc *searchuc.Service
	ratingSvc *ratinguc.Service
	ingestSvc *ingestuc.Service
	healthSvc *healthuc.Service
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("store not ready: %w", err)
	}
	logger.Info("Connected to store", zap.Strings("addrs", cfg.Database.Addrs))

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	clamper, err := textproc.NewClamper(cfg.Embedding.Tokenizer)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create token clamper: %w", err)
	}

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
		MaxRetries: cfg.Embedding.MaxRetries,
		Clamper:    clamper,
		Logger:     logger,
	})

	var completer *openaiTransport.Completer
	if cfg.Completion.Model != "" {
		completer = openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
			APIKey:     cfg.Completion.APIKey,
			BaseURL:    cfg.Completion.BaseURL,
			Model:      cfg.Completion.Model,
			MaxRetries: cfg.Completion.MaxRetries,
			Logger:     logger,
		})
	}

	laws := lawrepo.New(store)
	embeddings := embeddingrepo.New(store, cfg.Embedding.Dimensions)
	queries := queryrepo.New(store)
	leases := leaserepo.New(store)

	manager := index.NewManager(cfg.Index.Path, cfg.Embedding.Dimensions, embeddings, leases, logger)
	if err := manager.Load(); err != nil {
		store.Close()
		return nil, fmt.Errorf("load vector index: %w", err)
	}
	logger.Info("Vector index loaded", zap.Int("size", manager.Len()))

	embeddingSvc := embeddinguc.New(queries, embedder, logger)
	keywordsSvc := keywordsuc.New(completerOrNil(completer), cfg.Search.AssistedKeywords && completer != nil, logger)

	var paraphraser searchuc.Paraphraser
	if completer != nil {
		paraphraser = completer
	}
	searchSvc := searchuc.New(laws, embeddings, embeddingSvc, keywordsSvc, manager, paraphraser, embedder, searchuc.Params{
		MinQueryLength:        cfg.Search.MinQueryLength,
		MaxResults:            cfg.Search.MaxResults,
		VectorAggressiveness:  cfg.Search.VectorAggressiveness,
		LexicalAggressiveness: cfg.Search.LexicalAggressiveness,
		MaxParaphrases:        cfg.Search.MaxParaphrases,
	}, logger)

	ratingSvc := ratinguc.New(queries, embeddings, manager, logger)

	var rewriter ingestuc.Rewriter
	if completer != nil {
		rewriter = completer
	}
	ingestSvc := ingestuc.New(laws, embeddings, rewriter, embedder, clamper, leases, manager, ingestuc.Params{
		Workers:     cfg.Ingest.Workers,
		MaxRewrites: cfg.Ingest.MaxRewrites,
		MaxTokens:   cfg.Embedding.MaxTokens,
	}, logger)

	healthSvc := healthuc.New(store, embedder, manager)

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		searchSvc: searchSvc,
		ratingSvc: ratingSvc,
		ingestSvc: ingestSvc,
		healthSvc: healthSvc,
	}, nil
}

// completerOrNil avoids handing the keywords service a typed nil pointer
// wrapped in a non-nil interface.
func completerOrNil(c *openaiTransport.Completer) keywordsuc.Completer {
	if c == nil {
		return nil
	}
	return c
}

func (a *app) serve(env string) {
	logger := a.logger
	cfg := a.cfg

	logger.Info("Starting lawdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
	)

	server := chiTransport.NewServer(a.searchSvc, a.ratingSvc, a.healthSvc, cfg.Auth.APIKeys, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// runIngest loads a law corpus from a JSON file and feeds it through the
// ingest pipeline.
func (a *app) runIngest(ctx context.Context, path string) error {
	laws, err := loadLaws(path)
	if err != nil {
		return err
	}
	a.logger.Info("Loaded law corpus", zap.String("path", path), zap.Int("laws", len(laws)))

	report, err := a.ingestSvc.Ingest(ctx, laws)
	if err != nil {
		return fmt.Errorf("ingest corpus: %w", err)
	}
	a.logger.Info("Ingest finished",
		zap.Int("total", report.Total),
		zap.Int("stored", report.Stored),
		zap.Int("failed", report.Failed),
	)
	return nil
}

type lawRecord struct {
	ID        int64  `json:"id"`
	BookCode  string `json:"book_code"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	SourceURL string `json:"source_url"`
}

// loadLaws reads a JSON array of law records, dropping entries that carry
// no usable text (empty, shorter than 5 characters, or repealed provisions
// marked "(weggefallen)").
func loadLaws(path string) ([]domain.Law, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus file: %w", err)
	}

	var records []lawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse corpus file: %w", err)
	}

	laws := make([]domain.Law, 0, len(records))
	for _, rec := range records {
		if !usableLaw(rec) {
			continue
		}
		laws = append(laws, domain.Law{
			ID:        rec.ID,
			BookCode:  rec.BookCode,
			Title:     rec.Title,
			Text:      rec.Text,
			SourceURL: rec.SourceURL,
		})
	}
	return laws, nil
}

func usableLaw(rec lawRecord) bool {
	if rec.ID <= 0 || rec.Title == "" || len(rec.Text) < 5 {
		return false
	}
	if strings.Contains(strings.ToLower(rec.Title), "(weggefallen)") ||
		strings.Contains(strings.ToLower(rec.Text), "(weggefallen)") {
		return false
	}
	return true
}

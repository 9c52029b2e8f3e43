package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/opendiscourse/corpusd/internal/config"
	"github.com/opendiscourse/corpusd/internal/entity"
	"github.com/opendiscourse/corpusd/internal/filestore"
	"github.com/opendiscourse/corpusd/internal/graphstore"
	"github.com/opendiscourse/corpusd/internal/handler"
	"github.com/opendiscourse/corpusd/internal/ingest"
	"github.com/opendiscourse/corpusd/internal/job"
	"github.com/opendiscourse/corpusd/internal/middleware"
	"github.com/opendiscourse/corpusd/internal/pkg/keyset"
	"github.com/opendiscourse/corpusd/internal/repo"
	"github.com/opendiscourse/corpusd/internal/schedule"
	"github.com/opendiscourse/corpusd/internal/vectorstore"
	"github.com/opendiscourse/corpusd/internal/watcher"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "corpusd",
		Short: "corpusd ingestion and retrieval server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run corpusd server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			db, err := repo.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, db)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("db_path", cfg.DBPath),
		zap.String("vector_store", cfg.VectorStore.BaseURL),
		zap.String("graph_store", cfg.GraphStore.BaseURL),
		zap.Bool("auth_required", cfg.Auth.Required),
	)

	catalogRepo := repo.NewCatalogRepo(db)

	var verifier *keyset.Verifier
	if cfg.Auth.Required {
		cache := keyset.NewCache(cfg.Auth.JWKSURL, time.Duration(cfg.Auth.TimeoutSeconds)*time.Second)
		verifier = keyset.NewVerifier(cache, true)
	} else {
		verifier = keyset.NewVerifier(nil, false)
	}

	vectorClient := vectorstore.New(vectorstore.Config{
		BaseURL:    cfg.VectorStore.BaseURL,
		APIKey:     cfg.VectorStore.APIKey,
		Collection: cfg.VectorStore.Collection,
		Timeout:    time.Duration(cfg.VectorStore.TimeoutSeconds) * time.Second,
	})
	graphClient := graphstore.New(graphstore.Config{
		BaseURL:  cfg.GraphStore.BaseURL,
		Database: cfg.GraphStore.Database,
		Username: cfg.GraphStore.Username,
		Password: cfg.GraphStore.Password,
		Timeout:  time.Duration(cfg.GraphStore.TimeoutSeconds) * time.Second,
	})

	extractorArgs := cfg.Ingest.ExtractorArgs
	if extractorArgs == nil && cfg.Ingest.Extractor == "keyword" {
		extractorArgs = map[string]interface{}{"vocabulary": cfg.Ingest.Vocabulary}
	}
	extractor, err := entity.NewExtractor(cfg.Ingest.Extractor, extractorArgs)
	if err != nil {
		return fmt.Errorf("init entity extractor: %w", err)
	}

	splitter := ingest.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	ingestService := ingest.NewService(vectorClient, splitter)
	graphService := ingest.NewGraphService(graphClient, extractor)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.New()
	var inboxWatcher *watcher.Watcher
	if cfg.Inbox.Dir != "" {
		archive, err := filestore.New(cfg.Inbox.Archive)
		if err != nil {
			return fmt.Errorf("init archive store: %w", err)
		}
		inboxWatcher, err = watcher.New(cfg.Inbox.Dir, ingestService, graphService, catalogRepo, archive)
		if err != nil {
			return fmt.Errorf("init inbox watcher: %w", err)
		}
		go func() {
			if err := inboxWatcher.Run(ctx); err != nil {
				logutil.GetLogger(ctx).Error("inbox watcher stopped", zap.Error(err))
			}
		}()
		if err := scheduler.Add(cfg.Inbox.SweepCron, job.NewInboxSweepJob(inboxWatcher)); err != nil {
			return fmt.Errorf("schedule inbox sweep: %w", err)
		}
	}
	if err := scheduler.Add(cfg.Inbox.Cleanup.Cron, job.NewCatalogCleanupJob(catalogRepo, cfg.Inbox.Cleanup.MaxAgeDays)); err != nil {
		return fmt.Errorf("schedule catalog cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	deps := handler.RouterDeps{
		Schema:          handler.NewSchemaHandler(ingestService),
		Ingest:          handler.NewIngestHandler(ingestService, graphService),
		Query:           handler.NewQueryHandler(ingestService),
		Graph:           handler.NewGraphHandler(graphService),
		System:          handler.NewSystemHandler(catalogRepo, cfg.Auth.Required),
		Verifier:        verifier,
		IngestRateLimit: time.Duration(cfg.Ingest.RateLimitWindowMS) * time.Millisecond,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			middleware.RequestID(),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

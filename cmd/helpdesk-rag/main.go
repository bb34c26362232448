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

	"github.com/techoasis/helpdesk-rag/internal/ai"
	"github.com/techoasis/helpdesk-rag/internal/config"
	"github.com/techoasis/helpdesk-rag/internal/db"
	"github.com/techoasis/helpdesk-rag/internal/handler"
	"github.com/techoasis/helpdesk-rag/internal/job"
	"github.com/techoasis/helpdesk-rag/internal/middleware"
	"github.com/techoasis/helpdesk-rag/internal/repo"
	"github.com/techoasis/helpdesk-rag/internal/schedule"
	"github.com/techoasis/helpdesk-rag/internal/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "helpdesk-rag",
		Short: "helpdesk knowledge-base chat backend",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the chat backend server",
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

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.Int("chat_backends", len(cfg.RAG.Chat)),
		zap.Int("embed_backends", len(cfg.RAG.Embed)),
	)

	articleRepo := repo.NewArticleRepo(conn)
	chunkRepo := repo.NewChunkRepo(conn)
	interactionRepo := repo.NewInteractionRepo(conn)

	// The chat client carries no client-level timeout: blocking and streaming
	// calls each get their own context deadline in the service layer, and a
	// client timeout would cut streams off early.
	chatClient := &http.Client{}
	embedClient := &http.Client{Timeout: time.Duration(cfg.RAG.EmbedTimeout) * time.Second}

	chatModel, err := buildChatModel(cfg.RAG.Chat, chatClient)
	if err != nil {
		return fmt.Errorf("init chat backends: %w", err)
	}
	embedder, err := buildEmbedder(cfg.RAG.Embed, embedClient)
	if err != nil {
		return fmt.Errorf("init embed backends: %w", err)
	}

	chatService := service.NewChatService(chatModel, embedder, chunkRepo, interactionRepo, service.ChatConfig{
		TopK:            cfg.RAG.TopK,
		MaxContextChars: cfg.RAG.MaxContextChars,
		ChatTimeout:     time.Duration(cfg.RAG.ChatTimeout) * time.Second,
		StreamTimeout:   time.Duration(cfg.RAG.StreamTimeout) * time.Second,
	})
	indexerService := service.NewIndexerService(articleRepo, chunkRepo, embedder, service.IndexerConfig{
		MaxCharsPerChunk: cfg.RAG.MaxCharsPerChunk,
		StripMarkdown:    cfg.RAG.StripMarkdown,
	})
	articleService := service.NewArticleService(articleRepo)

	deps := handler.RouterDeps{
		Chat:      handler.NewChatHandler(chatService, indexerService),
		Articles:  handler.NewArticleHandler(articleService),
		JWTSecret: []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/chat/stream"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var scheduler schedule.Scheduler
	if cfg.RAG.ReindexCron != "" {
		scheduler = schedule.NewCronScheduler()
		if err := scheduler.AddJob(job.NewReindexJob(indexerService, chatService), cfg.RAG.ReindexCron); err != nil {
			return fmt.Errorf("schedule reindex: %w", err)
		}
		scheduler.Start(ctx)
		defer scheduler.Stop()
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

func buildChatModel(configs []config.ProviderConfig, client *http.Client) (ai.IChatModel, error) {
	entries := make([]ai.ChatEntry, 0, len(configs))
	for _, item := range configs {
		provider, err := ai.NewChatProvider(item.Provider, ai.ProviderArgs{Data: item.Data, Client: client})
		if err != nil {
			return nil, fmt.Errorf("chat provider %s: %w", item.Provider, err)
		}
		entries = append(entries, ai.ChatEntry{
			Name:  item.Provider,
			Model: ai.NewChatModel(provider, item.Model),
		})
	}
	return ai.NewGroupChatModel(entries), nil
}

func buildEmbedder(configs []config.ProviderConfig, client *http.Client) (ai.IEmbedder, error) {
	entries := make([]ai.EmbedderEntry, 0, len(configs))
	for _, item := range configs {
		provider, err := ai.NewEmbedProvider(item.Provider, ai.ProviderArgs{Data: item.Data, Client: client})
		if err != nil {
			return nil, fmt.Errorf("embed provider %s: %w", item.Provider, err)
		}
		entries = append(entries, ai.EmbedderEntry{
			Name:     item.Provider,
			Embedder: ai.NewEmbedder(provider, item.Model),
		})
	}
	return ai.NewGroupEmbedder(entries), nil
}

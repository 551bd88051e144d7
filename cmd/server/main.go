// Package main runs the Intervue HTTP server with the live call WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/intervue/backend/config"
	"github.com/intervue/backend/internal/auth"
	"github.com/intervue/backend/internal/call"
	"github.com/intervue/backend/internal/calllog"
	"github.com/intervue/backend/internal/feedback"
	"github.com/intervue/backend/internal/interviews"
	"github.com/intervue/backend/internal/middleware"
	"github.com/intervue/backend/internal/realtime"
	"github.com/intervue/backend/internal/voice"
	"github.com/intervue/backend/internal/worker"
	"github.com/intervue/backend/pkg/database"
	"github.com/intervue/backend/pkg/llm"
	"github.com/intervue/backend/pkg/queue"
	"github.com/intervue/backend/pkg/redis"
	"github.com/intervue/backend/pkg/response"
	"github.com/intervue/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" && cfg.AWS.TranscriptsBucket != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			TranscriptsBucket:    cfg.AWS.TranscriptsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	llmClient := llm.NewClient(llm.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
	}, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Interviews
	interviewRepo := interviews.NewRepository(pool)
	interviewHandler := interviews.NewHandler(interviewRepo, interviews.NewQuestionGenerator(llmClient), logger)

	// Feedback; transcripts are archived only when a bucket is configured
	feedbackRepo := feedback.NewRepository(pool)
	var (
		archiver feedback.Archiver
		signer   feedback.TranscriptSigner
	)
	if s3Client != nil {
		archiver = jobQueue
		signer = s3Client
	}
	feedbackService := feedback.NewService(feedback.NewLLMScorer(llmClient), feedbackRepo, archiver, logger)
	feedbackHandler := feedback.NewHandler(feedbackRepo, signer)

	// Call logs
	callLogRepo := calllog.NewRepository(pool)
	callLogHandler := calllog.NewHandler(callLogRepo)

	// Live calls
	callServer := realtime.NewCallServer(realtime.CallServerConfig{
		Hub:        hub,
		Interviews: interviewRepo,
		Existing:   feedbackRepo,
		Calls:      callLogRepo,
		Feedback:   feedbackService,
		NewProvider: func() voice.Provider {
			return voice.NewClient(voice.ClientConfig{
				URL:            cfg.Voice.URL,
				APIKey:         cfg.Voice.APIKey,
				ConnectTimeout: cfg.Voice.ConnectTimeout,
			}, logger)
		},
		Call: call.Config{
			MonitorInterval:    cfg.Call.MonitorInterval,
			InactivityTimeout:  cfg.Call.InactivityTimeout,
			MaxSessionDuration: cfg.Call.MaxSessionDuration,
			ClosingGrace:       cfg.Call.ClosingGrace,
			ClosingPhrases:     cfg.Call.ClosingPhrases,
			WorkflowID:         cfg.Voice.WorkflowID,
			ConnectTimeout:     cfg.Voice.ConnectTimeout,
			FeedbackTimeout:    cfg.Call.FeedbackTimeout,
		},
		Logger: logger,
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", middleware.RateLimit(2, 10), authHandler.Login)
		authGroup.POST("/register", middleware.RateLimit(1, 5), authHandler.Register)
	}

	// Voice workflow tool call (no JWT; invoked by the provider during a generate call)
	router.POST("/vapi/generate", middleware.RateLimit(0.5, 3), interviewHandler.Generate)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/auth/me", authHandler.Me)

		api.GET("/interviews/mine", interviewHandler.Mine)
		api.GET("/interviews/latest", interviewHandler.Latest)
		api.GET("/interviews/:id", interviewHandler.Get)
		api.GET("/interviews/:id/feedback", feedbackHandler.GetForInterview)
		api.GET("/interviews/:id/feedback/transcript", feedbackHandler.GetTranscriptURL)
		api.GET("/interviews/:id/calls", callLogHandler.ListByInterview)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws/call", middleware.JWTQuery(jwtService), callServer.ServeCall)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background worker (transcript archive to S3)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if s3Client != nil {
		archive := worker.NewTranscriptArchiver(feedbackRepo, s3Client, jobQueue, logger)
		go archive.Run(workerCtx)
		logger.Info("transcript worker started")
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	// hijacked call sockets are not tracked by Shutdown; let pending feedback finish
	waitOrTimeout(shutdownCtx, callServer.Wait)
	workerCancel()
	logger.Info("server stopped")
}

func waitOrTimeout(ctx context.Context, wait func()) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

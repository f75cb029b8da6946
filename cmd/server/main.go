// Package main runs the engagement HTTP server with WebSocket push and
// graceful shutdown.
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

	"github.com/gatherly/backend/config"
	"github.com/gatherly/backend/internal/auth"
	"github.com/gatherly/backend/internal/middleware"
	"github.com/gatherly/backend/internal/models"
	"github.com/gatherly/backend/internal/notifications"
	"github.com/gatherly/backend/internal/polls"
	"github.com/gatherly/backend/internal/questions"
	"github.com/gatherly/backend/internal/realtime"
	"github.com/gatherly/backend/internal/sessions"
	"github.com/gatherly/backend/pkg/database"
	"github.com/gatherly/backend/pkg/queue"
	"github.com/gatherly/backend/pkg/redis"
	"github.com/gatherly/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, pubsub, pubsub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Sessions (live-state toggle, agenda by day)
	sessionRepo := sessions.NewRepository(pool)
	sessionHandler := sessions.NewHandler(sessionRepo, hub, jobQueue, logger)

	// Questions (Q&A moderation)
	questionRepo := questions.NewRepository(pool)
	questionHandler := questions.NewHandler(questionRepo, hub, logger)

	// Polls
	pollRepo := polls.NewRepository(pool)
	pollHandler := polls.NewHandler(pollRepo, hub, jobQueue, logger)

	// Notification feed
	notificationRepo := notifications.NewRepository(pool)
	notificationHandler := notifications.NewHandler(notificationRepo, logger)

	jwtValidate := func(token string) (userID, role string, err error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return "", "", err
		}
		return claims.UserID.String(), claims.Role, nil
	}

	moderator := middleware.RequireRole(string(models.RoleAdmin), string(models.RoleOrganizer))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Engagement API (JWT required)
	engage := router.Group("/engage")
	engage.Use(middleware.JWT(jwtService))
	{
		// Session live state
		engage.PATCH("/:sessionId/live", moderator, sessionHandler.ToggleLive)
		engage.GET("/sessions/date", sessionHandler.ListByDate)
		engage.GET("/session/:sessionId", sessionHandler.Get)
		engage.GET("/session/:sessionId/audience", sessionHandler.Audience)

		// Q&A
		engage.POST("/session/:sessionId/questions", questionHandler.Ask)
		engage.GET("/:sessionId/questions", questionHandler.List)
		engage.PATCH("/question/:questionId", moderator, questionHandler.Moderate)

		// Polls
		engage.POST("/session/:sessionId/poll", moderator, pollHandler.Create)
		engage.PUT("/poll/:pollId", moderator, pollHandler.Update)
		engage.DELETE("/poll/:pollId", moderator, pollHandler.Delete)
		engage.POST("/poll/:pollId/end", moderator, pollHandler.Delete)
		engage.GET("/poll/:pollId/results", pollHandler.Results)
		engage.GET("/polls", pollHandler.ListByEvent)
		engage.POST("/poll/:pollId/response", pollHandler.Respond)

		// Notification feed
		engage.GET("/notifications", notificationHandler.ListByEvent)
	}

	// WebSocket (token in query; no Authorization header on handshakes)
	router.GET("/ws", realtime.ServeWs(hub, logger, jwtValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
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
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/chaptermaps/institution-service/internal/domain/file"
	"github.com/chaptermaps/institution-service/internal/domain/institution"
	filehandlers "github.com/chaptermaps/institution-service/internal/services/files/handlers"
	filerepository "github.com/chaptermaps/institution-service/internal/services/files/repository"
	fileservice "github.com/chaptermaps/institution-service/internal/services/files/service"
	insthandlers "github.com/chaptermaps/institution-service/internal/services/institution/handlers"
	instrepository "github.com/chaptermaps/institution-service/internal/services/institution/repository"
	instservice "github.com/chaptermaps/institution-service/internal/services/institution/service"
	"github.com/chaptermaps/institution-service/internal/storage"
	"github.com/chaptermaps/institution-service/internal/sweep"
	"github.com/chaptermaps/institution-service/pkg/cache"
	"github.com/chaptermaps/institution-service/pkg/config"
	"github.com/chaptermaps/institution-service/pkg/database"
	"github.com/chaptermaps/institution-service/pkg/events"
	"github.com/chaptermaps/institution-service/pkg/logger"
	"github.com/chaptermaps/institution-service/pkg/metrics"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	httpServer *http.Server
	db         *database.DB
	cache      cache.Cache
	eventBus   events.EventBus
	sweeper    *sweep.Sweeper
}

func New(cfg *config.Config, log logger.Logger) (*Server, error) {
	db, err := database.New(cfg.Database.ToDatabaseConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(&institution.Institution{}, &file.GeoFile{}, &file.ImageFile{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	var contentCache cache.Cache = cache.NewNop()
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		contentCache = cache.NewRedisCache(redisClient, "files")
	}

	var eventBus events.EventBus = events.NewNopEventBus()
	if cfg.Kafka.Enabled {
		eventBus, err = events.NewKafkaEventBus(cfg.Kafka.ToKafkaConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
	}

	store := storage.NewFileStore(storage.Config{
		GeoDir:   cfg.Storage.GeoDir,
		ImageDir: cfg.Storage.ImageDir,
	}, log)

	fileRepo := filerepository.NewFileRepository(db)
	fileService := fileservice.NewFileService(fileRepo, store, contentCache, eventBus, log, cfg.Storage.BaseURL)
	fileHandlers := filehandlers.NewFileHandlers(fileService, log)

	instRepo := instrepository.NewInstitutionRepository(db)
	instService := instservice.NewInstitutionService(instRepo, fileService, eventBus, log)
	instHandlers := insthandlers.NewInstitutionHandlers(instService, log)

	var sweeper *sweep.Sweeper
	if cfg.Sweep.Enabled {
		sweeper = sweep.New(sweep.Config{
			Schedule:    cfg.Sweep.Schedule,
			GracePeriod: time.Duration(cfg.Sweep.GracePeriodMins) * time.Minute,
			GeoDir:      cfg.Storage.GeoDir,
			ImageDir:    cfg.Storage.ImageDir,
		}, fileRepo, log)
	}

	router := setupRouter(fileHandlers, instHandlers, db, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &Server{
		config:     cfg,
		logger:     log,
		httpServer: httpServer,
		db:         db,
		cache:      contentCache,
		eventBus:   eventBus,
		sweeper:    sweeper,
	}, nil
}

func setupRouter(
	fh *filehandlers.FileHandlers,
	ih *insthandlers.InstitutionHandlers,
	db *database.DB,
	log logger.Logger,
) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggingMiddleware(log))
	router.Use(metricsMiddleware())

	router.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := db.DB.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/institutions", ih.List)
		v1.GET("/institutions/:id", ih.Get)
		v1.POST("/institutions", ih.Create)
		v1.PUT("/institutions/:id", ih.Update)
		v1.DELETE("/institutions/:id", ih.Delete)

		v1.POST("/files", fh.Upload)
		v1.GET("/files/:kind/:name", fh.Get)
		v1.PUT("/files/:kind/:name", fh.Update)
		v1.DELETE("/files/:kind/:name", fh.Delete)
	}

	return router
}

// Start runs the sweeper and the HTTP server; it blocks until the server
// stops.
func (s *Server) Start() error {
	if s.sweeper != nil {
		if err := s.sweeper.Start(); err != nil {
			return fmt.Errorf("failed to start sweeper: %w", err)
		}
	}

	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes all collaborators.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	if err := s.eventBus.Close(); err != nil {
		s.logger.Warn("event bus close failed", "error", err)
	}
	if err := s.cache.Close(); err != nil {
		s.logger.Warn("cache close failed", "error", err)
	}
	return s.db.Close()
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func loggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

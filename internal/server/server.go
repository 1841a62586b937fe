// Package server assembles repositories, services and HTTP routes into a
// runnable application.
package server

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/bioattend-api/api/swagger"
	"github.com/noah-isme/bioattend-api/internal/biometric"
	"github.com/noah-isme/bioattend-api/internal/handler"
	internalmiddleware "github.com/noah-isme/bioattend-api/internal/middleware"
	"github.com/noah-isme/bioattend-api/internal/repository"
	"github.com/noah-isme/bioattend-api/internal/service"
	"github.com/noah-isme/bioattend-api/pkg/config"
	"github.com/noah-isme/bioattend-api/pkg/export"
	"github.com/noah-isme/bioattend-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/bioattend-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/bioattend-api/pkg/middleware/requestid"
	"github.com/noah-isme/bioattend-api/pkg/storage"
)

const cacheNamespace = "bioattend"

// App holds the wired services. The CLI uses them directly; Router exposes
// them over HTTP.
type App struct {
	Subjects     *service.SubjectService
	Attendance   *service.AttendanceService
	Verification *service.VerificationService
	Export       *service.ExportService
	Auth         *service.AuthService
	Metrics      *service.MetricsService

	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	cache  *repository.CacheRepository
	redis  *redis.Client
}

// Option customises App construction.
type Option func(*options)

type options struct {
	now     func() time.Time
	matcher biometric.Matcher
}

// WithClock overrides the clock used to compute today's date.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMatcher swaps the template matcher used by verification.
func WithMatcher(m biometric.Matcher) Option {
	return func(o *options) { o.matcher = m }
}

// New wires the application over an open storage handle. redisClient may be
// nil, in which case caching stays off.
func New(cfg *config.Config, log *zap.Logger, db *sqlx.DB, redisClient *redis.Client, opts ...Option) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	o := options{matcher: biometric.ExactMatcher{}}
	for _, opt := range opts {
		opt(&o)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	subjectRepo := repository.NewSubjectRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, cacheNamespace)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, log, cfg.Cache.Enabled && redisClient != nil)

	var archive service.ImageArchive
	if cfg.Upload.ArchiveDir != "" {
		local, err := storage.NewLocalStorage(cfg.Upload.ArchiveDir)
		if err != nil {
			return nil, fmt.Errorf("open image archive: %w", err)
		}
		archive = local
	}

	intake := biometric.NewIntake(cfg.Upload.MaxFileSizeBytes)

	subjects := service.NewSubjectService(subjectRepo, intake, archive, cacheSvc, metrics, validate, log)
	attendance := service.NewAttendanceService(attendanceRepo, subjectRepo, cacheSvc, metrics, log, service.AttendanceConfig{
		HistoryLimit: cfg.Attendance.HistoryLimit,
		Location:     cfg.Attendance.Location(),
		Now:          o.now,
	})
	verification := service.NewVerificationService(subjectRepo, attendance, o.matcher, intake, metrics, log)
	exports := service.NewExportService(attendance, log, export.NewCSVExporter(), export.NewPDFExporter())
	auth := service.NewAuthService(validate, log, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		AdminUsername:     cfg.Auth.AdminUsername,
		AdminPasswordHash: cfg.Auth.AdminPasswordHash,
	})

	return &App{
		Subjects:     subjects,
		Attendance:   attendance,
		Verification: verification,
		Export:       exports,
		Auth:         auth,
		Metrics:      metrics,
		cfg:          cfg,
		logger:       log,
		db:           db,
		cache:        cacheRepo,
		redis:        redisClient,
	}, nil
}

// Router builds the gin engine with infrastructure and API routes.
func (a *App) Router() *gin.Engine {
	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.logger))
	r.Use(corsmiddleware.New(a.cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(a.Metrics, "/metrics", "/health", "/ready"))

	checks := map[string]handler.Pinger{"database": a.db}
	if a.redis != nil {
		checks["redis"] = handler.PingFunc(a.cache.Ping)
	}
	metricsHandler := handler.NewMetricsHandler(a.Metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if a.cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	maxUpload := a.cfg.Upload.MaxFileSizeBytes
	authHandler := handler.NewAuthHandler(a.Auth)
	subjectHandler := handler.NewSubjectHandler(a.Subjects, maxUpload)
	attendanceHandler := handler.NewAttendanceHandler(a.Attendance, a.Export)
	verificationHandler := handler.NewVerificationHandler(a.Verification, maxUpload)

	api := r.Group(a.cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/verify", verificationHandler.Verify)

	operator := api.Group("")
	if a.cfg.Auth.Enabled {
		operator.Use(internalmiddleware.JWT(a.Auth))
		operator.GET("/auth/me", authHandler.Me)
	}

	subjects := operator.Group("/subjects")
	subjects.GET("", subjectHandler.List)
	subjects.POST("", subjectHandler.Enroll)
	subjects.GET("/by-external-id/:externalId", subjectHandler.GetByExternalID)
	subjects.GET("/by-template/:template", subjectHandler.GetByTemplate)
	subjects.GET("/:id", subjectHandler.Get)
	subjects.PATCH("/:id", subjectHandler.Update)
	subjects.DELETE("/:id", subjectHandler.Delete)
	subjects.GET("/:id/attendance", attendanceHandler.History)
	subjects.POST("/:id/attendance", attendanceHandler.Mark)
	subjects.GET("/:id/stats", attendanceHandler.Stats)

	operator.GET("/attendance", attendanceHandler.ForDay)
	operator.GET("/attendance/export", attendanceHandler.Export)
	operator.POST("/templates", verificationHandler.Template)

	return r
}

// Close releases the Redis client. The storage handle belongs to the caller.
func (a *App) Close() error {
	if a.redis == nil {
		return nil
	}
	return a.cache.Close()
}

package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/komunitas-api/api/swagger"
	"github.com/noah-isme/komunitas-api/internal/handler"
	"github.com/noah-isme/komunitas-api/internal/middleware"
	"github.com/noah-isme/komunitas-api/internal/models"
	"github.com/noah-isme/komunitas-api/internal/repository"
	"github.com/noah-isme/komunitas-api/internal/service"
	"github.com/noah-isme/komunitas-api/pkg/cache"
	"github.com/noah-isme/komunitas-api/pkg/config"
	"github.com/noah-isme/komunitas-api/pkg/database"
	"github.com/noah-isme/komunitas-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/komunitas-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/komunitas-api/pkg/middleware/requestid"
)

// @title Komunitas API
// @version 1.0.0
// @description Membership community platform: targeted content, engagement and moderation
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	contentRepo := repository.NewContentRepository(db)
	engagementRepo := repository.NewEngagementRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	eventRepo := repository.NewEventRepository(db)
	helpPostRepo := repository.NewHelpPostRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "komunitas-api",
	})
	resolver := service.NewAccessResolver(membershipRepo, profileRepo, cacheRepo, metricsSvc, cfg.Access.ScopeCacheTTL, logr)
	pageBounds := service.PageBounds{
		DefaultSize: cfg.Content.DefaultPageSize,
		MaxSize:     cfg.Content.MaxPageSize,
	}
	engagementSvc := service.NewEngagementService(contentRepo, engagementRepo, resolver, metricsSvc, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, contentRepo, engagementRepo, resolver, metricsSvc, validate, logr, pageBounds)
	eventSvc := service.NewEventService(eventRepo, contentRepo, engagementRepo, resolver, metricsSvc, validate, logr, pageBounds)
	helpPostSvc := service.NewHelpPostService(helpPostRepo, contentRepo, engagementRepo, resolver, metricsSvc, validate, logr, pageBounds)
	exportSvc := service.NewExportService(contentRepo, engagementRepo, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc, resolver)
	eventHandler := handler.NewEventHandler(eventSvc, resolver)
	helpPostHandler := handler.NewHelpPostHandler(helpPostSvc, resolver)
	engagementHandler := handler.NewEngagementHandler(engagementSvc, resolver)
	exportHandler := handler.NewExportHandler(exportSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	adminOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)

	announcements := protected.Group("/announcements")
	announcements.GET("", announcementHandler.List)
	announcements.GET("/:id", announcementHandler.Get)
	announcements.POST("", adminOnly, announcementHandler.Create)
	announcements.PUT("/:id", adminOnly, announcementHandler.Update)
	announcements.POST("/:id/archive", adminOnly, announcementHandler.Archive)
	announcements.DELETE("/:id", adminOnly, announcementHandler.Delete)

	events := protected.Group("/events")
	events.GET("", eventHandler.List)
	events.GET("/:id", eventHandler.Get)
	events.POST("", adminOnly, eventHandler.Create)
	events.PUT("/:id", adminOnly, eventHandler.Update)
	events.POST("/:id/cancel", adminOnly, eventHandler.Cancel)
	events.DELETE("/:id", adminOnly, eventHandler.Delete)

	helpPosts := protected.Group("/help-posts")
	helpPosts.GET("", helpPostHandler.List)
	helpPosts.GET("/:id", helpPostHandler.Get)
	helpPosts.POST("", helpPostHandler.Create)
	helpPosts.PUT("/:id", helpPostHandler.Update)
	helpPosts.POST("/:id/moderate", adminOnly, helpPostHandler.Moderate)
	helpPosts.POST("/:id/pin", adminOnly, helpPostHandler.Pin)
	helpPosts.DELETE("/:id", helpPostHandler.Delete)

	content := protected.Group("/content/:kind/:id")
	content.PUT("/like", engagementHandler.ToggleLike)
	content.GET("/comments", engagementHandler.ListComments)
	content.POST("/comments", engagementHandler.AddComment)

	protected.PUT("/comments/:commentId/like", engagementHandler.ToggleCommentLike)

	if cfg.Exports.Enabled {
		protected.GET("/exports/engagement/:kind/:id", adminOnly, exportHandler.EngagementReport)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

package server

import (
	"github.com/gin-contrib/cors"
	"go.uber.org/fx"

	"github.com/arbiterhq/arbiter/internal/server/api"
	"github.com/arbiterhq/arbiter/internal/server/biz"
	"github.com/arbiterhq/arbiter/internal/server/middleware"
)

type Handlers struct {
	fx.In

	Authz  *api.AuthzHandlers
	System *api.SystemHandlers
	Admin  *api.AdminHandlers
}

type Services struct {
	fx.In

	AuthService *biz.AuthService
}

func SetupRoutes(server *Server, handlers Handlers, services Services) {
	server.Use(middleware.AccessLog())
	server.Use(middleware.WithLoggingTracing(server.Config.Trace))
	server.Use(middleware.WithMetrics())

	if server.Config.CORS.Enabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = server.Config.CORS.AllowedOrigins
		corsConfig.AllowMethods = server.Config.CORS.AllowedMethods
		corsConfig.AllowHeaders = server.Config.CORS.AllowedHeaders
		corsConfig.ExposeHeaders = server.Config.CORS.ExposedHeaders
		corsConfig.AllowCredentials = server.Config.CORS.AllowCredentials
		corsConfig.MaxAge = server.Config.CORS.MaxAge

		corsHandler := cors.New(corsConfig)
		server.Use(corsHandler)
		server.OPTIONS("*any", corsHandler)
	}

	publicGroup := server.Group("", middleware.WithTimeout(server.Config.RequestTimeout))
	{
		// Health check endpoint - no authentication required
		publicGroup.GET("/health", handlers.System.Health)
		publicGroup.GET("/v1/system/status", handlers.System.GetSystemStatus)
	}

	unSecureAdminGroup := server.Group("/admin", middleware.WithTimeout(server.Config.RequestTimeout))
	{
		// Admin login - DO NOT AUTH
		unSecureAdminGroup.POST("/auth/signin", handlers.Admin.SignIn)
	}

	adminGroup := server.Group("/admin",
		middleware.WithTimeout(server.Config.RequestTimeout),
		middleware.WithJWTAuth(services.AuthService),
	)
	{
		adminGroup.POST("/policy/reload", handlers.Admin.ReloadPolicy)
		adminGroup.GET("/traces/:tenant", handlers.Admin.GetRecentTraces)
	}

	authzGroup := server.Group("/v1/authz",
		middleware.WithTimeout(server.Config.RequestTimeout),
		middleware.WithAPIKeyAuth(services.AuthService),
	)
	{
		authzGroup.POST("/check", handlers.Authz.CheckAuthorization)
		authzGroup.POST("/bulk", handlers.Authz.BulkCheckAuthorization)
		authzGroup.POST("/debug", handlers.Authz.DebugAuthorization)
	}
}

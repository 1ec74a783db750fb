package server

import (
	"github.com/FrameNetBrasil/daisy/internal/server/middleware"
	"github.com/FrameNetBrasil/daisy/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, app *middleware.App) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(app.Metrics.Handler()))

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Disambiguation routes
	apiRoutes.POST("/disambiguate", routes.DisambiguateHandler)
	apiRoutes.GET("/disambiguate/schema", routes.DisambiguateSchemaHandler)

	// Network routes
	apiRoutes.POST("/network/rebuild", routes.RebuildNetworkHandler, middleware.RequirePermission(middleware.PermissionNetworkRebuild))
}

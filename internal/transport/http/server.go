// Package http provides the HTTP server of the chat engine.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/xiaot623/gogo/chatengine/internal/logging"
	v1 "github.com/xiaot623/gogo/chatengine/internal/transport/http/v1"
)

// Registrar mounts extra routes, such as the websocket endpoint.
type Registrar interface {
	RegisterRoutes(e *echo.Echo)
}

// NewServer creates and configures the public HTTP server.
func NewServer(engine v1.Engine, logger zerolog.Logger, extra ...Registrar) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(logging.RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1.NewHandler(engine).RegisterRoutes(e)
	for _, r := range extra {
		r.RegisterRoutes(e)
	}

	return e
}

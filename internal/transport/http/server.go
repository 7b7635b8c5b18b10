// Package http provides the echo servers of the studybuddy service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	v1 "github.com/xiaot623/studybuddy/internal/transport/http/v1"
	"github.com/xiaot623/studybuddy/internal/transport/ws"
)

// NewPublicServer creates the public server. It only accepts chat
// connections.
func NewPublicServer(wsServer *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/ws", wsServer.HandleWebSocket)

	return e
}

// NewAdminServer creates the internal server for operators: health, reminder
// control and task inspection.
func NewAdminServer(h *v1.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	h.RegisterRoutes(e)

	return e
}

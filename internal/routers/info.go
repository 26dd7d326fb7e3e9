package routers

import (
	"crypto/subtle"
	"net"
	"net/http"

	"sidecar-api/internal/lifecycle"
	"sidecar-api/internal/shared"

	"github.com/labstack/echo/v4"
)

// RegisterInfoRoutes mounts the banners and the list of mounted services.
// root is the server root, api the /api/v1 group.
func RegisterInfoRoutes(root *echo.Group, api *echo.Group, services []string) {
	root.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, shared.MessageResponse{Message: "🦄🌈✨👋🌎🌍🌏✨🌈🦄"})
	})
	apiBanner := func(c echo.Context) error {
		return c.JSON(http.StatusOK, shared.MessageResponse{Message: "API - 👋🌎🌍🌏"})
	}
	api.GET("", apiBanner)
	api.GET("/", apiBanner)
	api.GET("/services", func(c echo.Context) error {
		return c.JSON(http.StatusOK, shared.ServicesResponse{Services: services})
	})
}

// Lifecycle is the part of the controller reachable over HTTP.
type Lifecycle interface {
	Status() lifecycle.Status
	RequestQuit() lifecycle.Status
}

// RegisterLifecycleRoutes lets a separate process query or stop this one.
// Stop only requests the quit; the owner shuts the server down after the
// reply is sent. With a key every call must carry it as a bearer token;
// without one only direct loopback calls are accepted, since the tunnel
// forwards public traffic to the same listener.
func RegisterLifecycleRoutes(e *echo.Group, lc Lifecycle, key string) {
	g := e.Group("/lifecycle", requireControl(key))
	g.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, lc.Status())
	})
	g.POST("/stop", func(c echo.Context) error {
		return c.JSON(http.StatusOK, lc.RequestQuit())
	})
}

func requireControl(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if key != "" {
				token, err := shared.ExtractBearer(req.Header)
				if err != nil || subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
					return c.JSON(http.StatusUnauthorized, shared.ErrorResponse{Error: "unauthorized"})
				}
				return next(c)
			}
			if !isLoopback(req.RemoteAddr) || req.Header.Get(echo.HeaderXForwardedFor) != "" || req.Header.Get("Forwarded") != "" {
				return c.JSON(http.StatusForbidden, shared.ErrorResponse{Error: "forbidden"})
			}
			return next(c)
		}
	}
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

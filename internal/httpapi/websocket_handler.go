package httpapi

import "github.com/labstack/echo/v4"

// handleWebSocket upgrades the single WS endpoint and blocks
// for the connection's lifetime; the hub itself owns subscribe/unsubscribe
// and ping handling once upgraded.
func (s *Server) handleWebSocket(c echo.Context) error {
	return s.hub.Upgrade(c.Response().Writer, c.Request())
}

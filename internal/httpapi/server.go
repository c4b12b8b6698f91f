// Package httpapi implements the HTTP/WS Surface: a REST
// mirror of the MCP tool surface plus read models, and the single
// WebSocket upgrade endpoint backed by the broadcaster hub.
package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/frayhub/fray/internal/applog"
	"github.com/frayhub/fray/internal/broadcaster"
	"github.com/frayhub/fray/internal/channels"
	"github.com/frayhub/fray/internal/registry"
	"github.com/frayhub/fray/internal/router"
	db "github.com/frayhub/fray/internal/store"
)

// Server wires the Store/Registry/Channels/Router/Broadcaster against an
// echo REST + WebSocket surface.
type Server struct {
	store         *db.Store
	hub           *broadcaster.Hub
	registry      *registry.Registry
	channels      *channels.Manager
	router        *router.Router
	workspaceGUID string
	log           *applog.Logger

	echo *echo.Echo
}

// New builds the HTTP/WS surface and registers every route.
func New(store *db.Store, hub *broadcaster.Hub, reg *registry.Registry, chanMgr *channels.Manager, r *router.Router, workspaceGUID string) *Server {
	s := &Server{
		store: store, hub: hub, registry: reg, channels: chanMgr, router: r,
		workspaceGUID: workspaceGUID, log: applog.New("httpapi"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(s.authMiddleware)
	e.HTTPErrorHandler = s.errorHandler

	s.registerRoutes(e)
	s.echo = e
	return s
}

func (s *Server) registerRoutes(e *echo.Echo) {
	api := e.Group("/api")

	api.GET("/channels", s.handleListChannels)
	api.POST("/channels", s.handleCreateChannel)
	api.POST("/channels/:id/join", s.handleJoinChannel)
	api.PUT("/channels/:id/topic", s.handleSetChannelTopic)
	api.GET("/channels/:id/export", s.handleExportChannel)
	api.POST("/channels/:id/read", s.handleMarkRead)
	api.GET("/channels/:id/unread", s.handleUnreadCount)

	api.POST("/dm/:agentName", s.handleOpenDM)

	api.GET("/channels/:id/messages", s.handleGetMessages)
	api.POST("/channels/:id/messages", s.handleSendMessage)
	api.GET("/channels/:id/messages/pinned", s.handleListPinned)
	api.PATCH("/channels/:id/messages/:mid", s.handleEditMessage)
	api.DELETE("/channels/:id/messages/:mid", s.handleDeleteMessage)
	api.POST("/channels/:id/messages/:mid/react", s.handleReactMessage)
	api.GET("/channels/:id/messages/:mid/reactions", s.handleListReactions)
	api.POST("/channels/:id/messages/:mid/pin", s.handlePinMessage)

	api.GET("/agents", s.handleListAgents)

	api.GET("/features", s.handleGetFeatureRequests)
	api.POST("/features", s.handleCreateFeatureRequest)
	api.POST("/features/:id/vote", s.handleVoteFeature)
	api.PATCH("/features/:id/status", s.handleUpdateFeatureStatus)
	api.DELETE("/features/:id", s.handleDeleteFeatureRequest)

	api.GET("/search", s.handleSearch)

	api.GET("/workspace", s.handleGetWorkspace)
	api.GET("/workspace/members", s.handleListMembers)
	api.GET("/workspace/api-keys", s.handleListAPIKeys)
	api.POST("/workspace/api-keys", s.handleCreateAPIKey)
	api.DELETE("/workspace/api-keys/:id", s.handleRevokeAPIKey)
	api.GET("/workspace/invites", s.handleListInvites)
	api.POST("/workspace/invites", s.handleCreateInvite)
	api.DELETE("/workspace/invites/:token", s.handleRevokeInvite)
	api.POST("/invites/:token/redeem", s.handleRedeemInvite)

	e.GET("/ws", s.handleWebSocket)
	e.GET("/healthz", s.handleHealthz)
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "ws_clients": s.hub.ClientCount()})
}

// errorHandler maps handler errors to explicit status codes instead of
// echo's default HTML error page; malformed request bodies always land
// on 400.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	message := "internal error"
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
	} else {
		s.log.Error("unhandled request error: %v", err)
	}
	_ = c.JSON(code, map[string]string{"error": message})
}

// Handler returns the server as a standard http.Handler, for cmd/fray-hubd
// to wrap with its own listener and graceful-shutdown machinery.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Shutdown drains in-flight requests and stops accepting new ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

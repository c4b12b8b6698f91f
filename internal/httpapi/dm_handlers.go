package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

// handleOpenDM provisions (or returns) the `#dm-{agentName}` channel with
// the agent and the requesting human as members. Idempotent.
func (s *Server) handleOpenDM(c echo.Context) error {
	agent, err := db.GetAgentByName(s.store.DB, c.Param("agentName"))
	if err != nil {
		return err
	}
	if agent == nil {
		return echo.NewHTTPError(http.StatusNotFound, "agent not found")
	}
	if agent.AgentType == types.AgentTypeSystem {
		return echo.NewHTTPError(http.StatusBadRequest, "system agents cannot be messaged directly")
	}

	user, err := s.requestUser(c)
	if err != nil {
		return err
	}
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}

	channel, err := s.channels.EnsureDM(agent.AgentName, agent.UserGUID, user.GUID, s.workspaceGUID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, channel)
}

// handleMarkRead advances the requesting user's read receipt for a channel
// to now.
func (s *Server) handleMarkRead(c echo.Context) error {
	channel, err := s.lookupChannel(c.Param("id"))
	if err != nil {
		return err
	}
	user, err := s.requestUser(c)
	if err != nil {
		return err
	}
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}
	if err := db.MarkRead(s.store.DB, user.GUID, channel.GUID, time.Now().Unix()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleUnreadCount reports how many messages arrived in a channel after the
// requesting user's read receipt, excluding the user's own messages.
func (s *Server) handleUnreadCount(c echo.Context) error {
	channel, err := s.lookupChannel(c.Param("id"))
	if err != nil {
		return err
	}
	user, err := s.requestUser(c)
	if err != nil {
		return err
	}
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}
	count, err := db.CountUnread(s.store.DB, user.GUID, channel.GUID)
	if err != nil {
		return err
	}
	out := map[string]any{"channel_guid": channel.GUID, "unread": count}
	receipt, err := db.GetReadReceipt(s.store.DB, user.GUID, channel.GUID)
	if err != nil {
		return err
	}
	if receipt != nil {
		out["last_read_at"] = receipt.LastReadAt
	}
	return c.JSON(http.StatusOK, out)
}

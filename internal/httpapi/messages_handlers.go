package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/frayhub/fray/internal/core"
	"github.com/frayhub/fray/internal/router"
	db "github.com/frayhub/fray/internal/store"
)

type sendMessageBody struct {
	Content  string   `json:"content"`
	Mentions []string `json:"mentions,omitempty"`
	ParentID string   `json:"parent_id,omitempty"`
}

func (s *Server) handleSendMessage(c echo.Context) error {
	var body sendMessageBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	channel, err := s.lookupChannel(c.Param("id"))
	if err != nil {
		return err
	}
	sender, err := s.requestUser(c)
	if err != nil {
		return err
	}
	if sender == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown sender")
	}

	// Browser clients don't compute mention lists; when the body omits one,
	// derive it from the content against the registered agent names.
	mentions := body.Mentions
	if mentions == nil {
		names, err := s.registeredAgentNames()
		if err != nil {
			return err
		}
		mentions = core.ExtractMentions(body.Content, names)
	}

	msg, err := s.router.Send(router.SendRequest{
		SenderGUID: sender.GUID, SenderName: sender.Name,
		ChannelGUID: channel.GUID, ChannelName: channel.Name,
		Content: body.Content, Mentions: mentions, ParentGUID: body.ParentID,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, msg)
}

func (s *Server) handleGetMessages(c echo.Context) error {
	channel, err := s.lookupChannel(c.Param("id"))
	if err != nil {
		return err
	}
	limit := parseIntDefault(c.QueryParam("limit"), 50)
	messages, err := db.GetMessagesInChannel(s.store.DB, channel.GUID, limit, c.QueryParam("before"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messages)
}

func (s *Server) handleListPinned(c echo.Context) error {
	channel, err := s.lookupChannel(c.Param("id"))
	if err != nil {
		return err
	}
	pinned, err := db.ListPinnedMessages(s.store.DB, channel.GUID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pinned)
}

type editMessageBody struct {
	Content string `json:"content"`
}

func (s *Server) handleEditMessage(c echo.Context) error {
	var body editMessageBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	auth := requestAuthFrom(c)
	msg, err := s.router.Edit(c.Param("mid"), auth.UserGUID, body.Content)
	if err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return c.JSON(http.StatusOK, msg)
}

func (s *Server) handleDeleteMessage(c echo.Context) error {
	auth := requestAuthFrom(c)
	if err := s.router.Delete(c.Param("mid"), auth.UserGUID); err != nil {
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type reactBody struct {
	Emoji string `json:"emoji"`
}

func (s *Server) handleReactMessage(c echo.Context) error {
	var body reactBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	auth := requestAuthFrom(c)
	action, err := s.router.React(c.Param("mid"), auth.UserGUID, body.Emoji)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"action": string(action), "emoji": body.Emoji})
}

func (s *Server) handleListReactions(c echo.Context) error {
	reactions, err := db.GetReactions(s.store.DB, c.Param("mid"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reactions)
}

func (s *Server) handlePinMessage(c echo.Context) error {
	auth := requestAuthFrom(c)
	msg, err := s.router.Pin(c.Param("mid"), auth.UserGUID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, msg)
}

func (s *Server) registeredAgentNames() (map[string]struct{}, error) {
	agents, err := db.ListAgents(s.store.DB, s.workspaceGUID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		names[a.AgentName] = struct{}{}
	}
	return names, nil
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

package httpapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/frayhub/fray/internal/core"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

func (s *Server) handleListChannels(c echo.Context) error {
	list, err := s.channels.List(s.workspaceGUID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

type createChannelBody struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateChannel(c echo.Context) error {
	var body createChannelBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	auth := requestAuthFrom(c)
	channel, err := s.channels.CreateCustom(body.Name, auth.UserGUID, s.workspaceGUID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, channel)
}

func (s *Server) handleJoinChannel(c echo.Context) error {
	auth := requestAuthFrom(c)
	channel, err := s.lookupChannel(c.Param("id"))
	if err != nil {
		return err
	}
	status, err := s.channels.Join(auth.UserGUID, channel.Name, s.workspaceGUID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": string(status)})
}

type setTopicBody struct {
	Topic string `json:"topic"`
}

func (s *Server) handleSetChannelTopic(c echo.Context) error {
	var body setTopicBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	channel, err := s.lookupChannel(c.Param("id"))
	if err != nil {
		return err
	}
	if err := s.channels.SetTopic(channel.GUID, body.Topic); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// handleExportChannel streams a channel's full message history as a JSON
// attachment. Each message carries a short_id so an export can be cited
// back as a "#abcd" reference; the ref length scales with history size.
func (s *Server) handleExportChannel(c echo.Context) error {
	channel, err := s.lookupChannel(c.Param("id"))
	if err != nil {
		return err
	}
	messages, err := db.GetMessagesInChannel(s.store.DB, channel.GUID, 1<<30, "")
	if err != nil {
		return err
	}

	type exportMessage struct {
		types.Message
		ShortID string `json:"short_id"`
	}
	refLen := core.ShortRefLength(len(messages))
	out := make([]exportMessage, len(messages))
	for i, m := range messages {
		out[i] = exportMessage{Message: m, ShortID: core.ShortRef(m.GUID, refLen)}
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.json"`, channel.Name))
	return c.JSON(http.StatusOK, map[string]any{"channel": channel, "messages": out})
}

// lookupChannel resolves the {id} path param, which may be either a
// channel guid or its bare name, against the active workspace.
func (s *Server) lookupChannel(idOrName string) (*types.Channel, error) {
	channel, err := db.GetChannel(s.store.DB, idOrName)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		channel, err = db.GetChannelByName(s.store.DB, s.workspaceGUID, normalizeChannelParam(idOrName))
		if err != nil {
			return nil, err
		}
	}
	if channel == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "channel not found")
	}
	return channel, nil
}

func normalizeChannelParam(name string) string {
	if len(name) > 0 && name[0] == '#' {
		return name[1:]
	}
	return name
}

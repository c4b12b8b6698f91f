package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/frayhub/fray/internal/core"
	db "github.com/frayhub/fray/internal/store"
)

func (s *Server) handleSearch(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}

	filter := db.SearchFilter{Limit: parseIntDefault(c.QueryParam("limit"), 50)}
	if channelParam := c.QueryParam("channel"); channelParam != "" {
		channel, err := s.lookupChannel(channelParam)
		if err != nil {
			return err
		}
		filter.ChannelGUID = channel.GUID
	}
	if senderParam := c.QueryParam("sender"); senderParam != "" {
		sender, err := db.GetUserByName(s.store.DB, senderParam)
		if err != nil {
			return err
		}
		if sender != nil {
			filter.SenderGUID = sender.GUID
		}
	}
	after, err := s.parseTimeParam(c.QueryParam("after"), "since")
	if err != nil {
		return err
	}
	filter.After = after
	before, err := s.parseTimeParam(c.QueryParam("before"), "until")
	if err != nil {
		return err
	}
	filter.Before = before

	results, err := db.SearchMessages(s.store.DB, query, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"query": query, "results": results, "count": len(results)})
}

// parseTimeParam accepts either a unix-seconds timestamp or a time
// expression ("2h", "today", "#abcd" message references).
func (s *Server) parseTimeParam(raw, mode string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	if n := int64(parseIntDefault(raw, -1)); n >= 0 {
		return &n, nil
	}
	cursor, err := core.ParseTimeExpression(s.store.DB, raw, mode)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ts := cursor.TS
	return &ts, nil
}

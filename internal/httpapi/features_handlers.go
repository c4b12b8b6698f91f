package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/frayhub/fray/internal/broadcaster"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

func (s *Server) handleGetFeatureRequests(c echo.Context) error {
	features, err := db.ListFeatureRequests(s.store.DB, types.FeatureStatus(c.QueryParam("status")))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, features)
}

type createFeatureBody struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateFeatureRequest(c echo.Context) error {
	var body createFeatureBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if body.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	auth := requestAuthFrom(c)

	feature := types.FeatureRequest{Title: body.Title, CreatedBy: auth.UserGUID, CreatedAt: time.Now().Unix()}
	if body.Description != "" {
		feature.Description = &body.Description
	}
	created, err := db.CreateFeatureRequest(s.store.DB, feature)
	if err != nil {
		return err
	}
	s.hub.Broadcast(broadcaster.FeatureUpdateEvent(created))
	return c.JSON(http.StatusCreated, created)
}

type voteFeatureBody struct {
	Vote int `json:"vote"`
}

func (s *Server) handleVoteFeature(c echo.Context) error {
	var body voteFeatureBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if body.Vote != 1 && body.Vote != -1 {
		return echo.NewHTTPError(http.StatusBadRequest, "vote must be +1 or -1")
	}
	auth := requestAuthFrom(c)
	if err := db.CastVote(s.store.DB, c.Param("id"), auth.UserGUID, body.Vote, time.Now().Unix()); err != nil {
		return err
	}
	feature, err := db.GetFeatureRequest(s.store.DB, c.Param("id"))
	if err != nil {
		return err
	}
	if feature != nil {
		s.hub.Broadcast(broadcaster.FeatureUpdateEvent(*feature))
	}
	return c.JSON(http.StatusOK, feature)
}

type updateFeatureStatusBody struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleUpdateFeatureStatus(c echo.Context) error {
	var body updateFeatureStatusBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	var reason *string
	if body.Reason != "" {
		reason = &body.Reason
	}
	if err := db.SetFeatureStatus(s.store.DB, c.Param("id"), types.FeatureStatus(body.Status), reason); err != nil {
		return err
	}
	feature, err := db.GetFeatureRequest(s.store.DB, c.Param("id"))
	if err != nil {
		return err
	}
	if feature != nil {
		s.hub.Broadcast(broadcaster.FeatureUpdateEvent(*feature))
	}
	return c.JSON(http.StatusOK, feature)
}

func (s *Server) handleDeleteFeatureRequest(c echo.Context) error {
	id := c.Param("id")
	if err := db.DeleteFeatureRequest(s.store.DB, id); err != nil {
		return err
	}
	s.hub.Broadcast(broadcaster.FeatureUpdateEvent(map[string]string{"guid": id, "deleted": "true"}))
	return c.NoContent(http.StatusNoContent)
}

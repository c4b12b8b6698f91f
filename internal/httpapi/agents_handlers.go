package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

type agentWithGhost struct {
	types.Agent
	IsGhost bool `json:"is_ghost"`
}

func (s *Server) handleListAgents(c echo.Context) error {
	agents, err := db.ListAgents(s.store.DB, s.workspaceGUID)
	if err != nil {
		return err
	}
	out := make([]agentWithGhost, len(agents))
	for i, a := range agents {
		out[i] = agentWithGhost{Agent: a, IsGhost: s.registry.IsGhost(a.AgentName)}
	}
	return c.JSON(http.StatusOK, out)
}

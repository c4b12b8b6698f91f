package httpapi

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

func (s *Server) handleGetWorkspace(c echo.Context) error {
	ws, err := db.GetWorkspace(s.store.DB, s.workspaceGUID)
	if err != nil {
		return err
	}
	if ws == nil {
		return echo.NewHTTPError(http.StatusNotFound, "workspace not found")
	}
	return c.JSON(http.StatusOK, ws)
}

func (s *Server) handleListMembers(c echo.Context) error {
	members, err := db.ListWorkspaceMembers(s.store.DB, s.workspaceGUID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, members)
}

type createAPIKeyResponse struct {
	types.WorkspaceAPIKey
	Token string `json:"token"`
}

func (s *Server) handleCreateAPIKey(c echo.Context) error {
	auth := requestAuthFrom(c)
	if auth.Role != types.WorkspaceRoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "admin role required")
	}

	token, err := randomToken()
	if err != nil {
		return err
	}
	hash := sha256.Sum256([]byte(token))
	var createdBy *string
	if auth.UserGUID != "" {
		createdBy = &auth.UserGUID
	}
	key, err := db.CreateAPIKey(s.store.DB, types.WorkspaceAPIKey{
		WorkspaceGUID: s.workspaceGUID,
		TokenHash:     hex.EncodeToString(hash[:]),
		TokenPrefix:   token[:8],
		CreatedBy:     createdBy,
		CreatedAt:     time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, createAPIKeyResponse{WorkspaceAPIKey: key, Token: token})
}

func (s *Server) handleRevokeAPIKey(c echo.Context) error {
	auth := requestAuthFrom(c)
	if auth.Role != types.WorkspaceRoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "admin role required")
	}
	if err := db.RevokeAPIKey(s.store.DB, c.Param("id"), time.Now().Unix()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListAPIKeys(c echo.Context) error {
	auth := requestAuthFrom(c)
	if auth.Role != types.WorkspaceRoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "admin role required")
	}
	keys, err := db.ListAPIKeys(s.store.DB, s.workspaceGUID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, keys)
}

type createInviteBody struct {
	Role      string `json:"role,omitempty"`
	MaxUses   *int   `json:"max_uses,omitempty"`
	ExpiresAt *int64 `json:"expires_at,omitempty"`
}

func (s *Server) handleCreateInvite(c echo.Context) error {
	auth := requestAuthFrom(c)
	if auth.Role != types.WorkspaceRoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "admin role required")
	}
	var body createInviteBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	role := types.WorkspaceRoleMember
	if body.Role != "" {
		role = types.WorkspaceRole(body.Role)
	}
	token, err := randomToken()
	if err != nil {
		return err
	}
	invite := types.WorkspaceInvite{
		Token: token, WorkspaceGUID: s.workspaceGUID, Role: role,
		MaxUses: body.MaxUses, ExpiresAt: body.ExpiresAt, CreatedAt: time.Now().Unix(),
	}
	if err := db.CreateInvite(s.store.DB, invite); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, invite)
}

func (s *Server) handleListInvites(c echo.Context) error {
	auth := requestAuthFrom(c)
	if auth.Role != types.WorkspaceRoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "admin role required")
	}
	invites, err := db.ListInvites(s.store.DB, s.workspaceGUID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, invites)
}

func (s *Server) handleRevokeInvite(c echo.Context) error {
	auth := requestAuthFrom(c)
	if auth.Role != types.WorkspaceRoleAdmin {
		return echo.NewHTTPError(http.StatusForbidden, "admin role required")
	}
	if err := db.RevokeInvite(s.store.DB, c.Param("token"), time.Now().Unix()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRedeemInvite(c echo.Context) error {
	invite, err := db.GetInvite(s.store.DB, c.Param("token"))
	if err != nil {
		return err
	}
	if invite == nil {
		return echo.NewHTTPError(http.StatusNotFound, "invite not found")
	}
	now := time.Now().Unix()
	switch {
	case invite.RevokedAt != nil:
		return echo.NewHTTPError(http.StatusBadRequest, "invite revoked")
	case invite.ExpiresAt != nil && *invite.ExpiresAt < now:
		return echo.NewHTTPError(http.StatusBadRequest, "invite expired")
	case invite.MaxUses != nil && invite.UseCount >= *invite.MaxUses:
		return echo.NewHTTPError(http.StatusBadRequest, "invite exhausted")
	}
	if err := db.RedeemInvite(s.store.DB, invite.Token); err != nil {
		return err
	}

	// Redemption enrolls the requesting user at the invite's role, unless
	// they already belong to the workspace.
	if user, err := s.requestUser(c); err != nil {
		return err
	} else if user != nil {
		member, err := db.GetWorkspaceMember(s.store.DB, invite.WorkspaceGUID, user.GUID)
		if err != nil {
			return err
		}
		if member == nil {
			if err := db.AddWorkspaceMember(s.store.DB, types.WorkspaceMember{
				WorkspaceGUID: invite.WorkspaceGUID,
				UserGUID:      user.GUID,
				Role:          invite.Role,
				JoinedAt:      now,
			}); err != nil {
				return err
			}
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func randomToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

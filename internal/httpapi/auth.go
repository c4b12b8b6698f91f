package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

// requestAuth is what every auth layer resolves to. It authorizes a
// request but never changes what the request does in the default
// single-workspace deployment.
type requestAuth struct {
	UserGUID      string
	WorkspaceGUID string
	Role          types.WorkspaceRole
}

const sessionCookieName = "fray_session"

// authMiddleware resolves a session cookie, a bearer API key, or a
// localhost bypass, in that order, and stores the result on the echo
// context under authContextKey. Failure to resolve any of them falls
// back to an anonymous member of workspaceGUID rather than a 401 — the
// default deployment has no login wall.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := requestAuth{WorkspaceGUID: s.workspaceGUID, Role: types.WorkspaceRoleMember}

		if cookie, err := c.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
			if user, err := db.GetUserByGUID(s.store.DB, cookie.Value); err == nil && user != nil {
				auth.UserGUID = user.GUID
			}
		} else if token := bearerToken(c.Request().Header.Get("Authorization")); token != "" {
			hash := sha256.Sum256([]byte(token))
			if key, err := db.GetAPIKeyByHash(s.store.DB, hex.EncodeToString(hash[:])); err == nil && key != nil && key.RevokedAt == nil {
				auth.WorkspaceGUID = key.WorkspaceGUID
				auth.Role = types.WorkspaceRoleMember
			}
		} else if isLocalhost(c.Request().RemoteAddr) {
			auth.Role = types.WorkspaceRoleAdmin
		}

		c.Set(authContextKey, auth)
		return next(c)
	}
}

const authContextKey = "fray_auth"

func requestAuthFrom(c echo.Context) requestAuth {
	auth, _ := c.Get(authContextKey).(requestAuth)
	return auth
}

// operatorUserName is the seed human identity used for localhost requests
// that carry no session cookie. The default deployment is a single operator
// on their own machine; that operator still needs a user row to send
// messages and own DM channels.
const operatorUserName = "operator"

// requestUser resolves the acting user: the cookie-resolved user when one is
// set, otherwise the local operator user (created on first use) for
// localhost requests. Returns nil for remote requests with no identity.
func (s *Server) requestUser(c echo.Context) (*types.User, error) {
	auth := requestAuthFrom(c)
	if auth.UserGUID != "" {
		return db.GetUserByGUID(s.store.DB, auth.UserGUID)
	}
	if auth.Role != types.WorkspaceRoleAdmin {
		return nil, nil
	}

	user, err := db.GetUserByName(s.store.DB, operatorUserName)
	if err != nil || user != nil {
		return user, err
	}
	created, err := db.CreateUser(s.store.DB, types.User{
		Name: operatorUserName, Type: types.UserTypeHuman, CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		// Lost a create race against another request; the row exists now.
		if existing, gerr := db.GetUserByName(s.store.DB, operatorUserName); gerr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return &created, nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func isLocalhost(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

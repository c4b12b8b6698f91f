// Package mcp implements the MCP Surface: the same register/
// send/read/feature/profile operations as the HTTP surface, exposed as MCP
// tools over a streamable-HTTP or stdio transport.
package mcp

import (
	"context"
	"net/http"

	gosdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/frayhub/fray/internal/applog"
	"github.com/frayhub/fray/internal/broadcaster"
	"github.com/frayhub/fray/internal/channels"
	"github.com/frayhub/fray/internal/prompts"
	"github.com/frayhub/fray/internal/registry"
	"github.com/frayhub/fray/internal/router"
	db "github.com/frayhub/fray/internal/store"
)

// Server wires the Registry/Channels/Router/Store against an MCP tool set.
type Server struct {
	store         *db.Store
	hub           *broadcaster.Hub
	registry      *registry.Registry
	channels      *channels.Manager
	router        *router.Router
	prompts       *prompts.Renderer
	workspaceGUID string
	log           *applog.Logger

	sessions *sessionStore
	inner    *gosdk.Server
}

// NewServer builds the MCP server and registers every tool.
// promptRenderer may be nil, in which case register responses omit
// master_prompt/inject_prompt.
func NewServer(store *db.Store, hub *broadcaster.Hub, reg *registry.Registry, chanMgr *channels.Manager, r *router.Router, promptRenderer *prompts.Renderer, workspaceGUID, version string) *Server {
	s := &Server{
		store:         store,
		hub:           hub,
		registry:      reg,
		channels:      chanMgr,
		router:        r,
		prompts:       promptRenderer,
		workspaceGUID: workspaceGUID,
		log:           applog.New("mcp"),
		sessions:      newSessionStore(),
	}

	s.inner = gosdk.NewServer(&gosdk.Implementation{Name: "fray-hub", Version: version}, nil)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "register", Description: "Register or reconnect an agent identity for this connection."}, s.handleRegister)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "disconnect", Description: "Mark the calling (or named) agent offline."}, s.handleDisconnect)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "send_message", Description: "Send a message into a channel, triggering invocation."}, s.handleSendMessage)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "get_messages", Description: "Priority-aware read of pending messages."}, s.handleGetMessages)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "create_channel", Description: "Create a custom channel."}, s.handleCreateChannel)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "join_channel", Description: "Join an existing channel."}, s.handleJoinChannel)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "set_channel_topic", Description: "Set a channel's topic."}, s.handleSetChannelTopic)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "list_channels", Description: "List non-archived channels."}, s.handleListChannels)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "list_agents", Description: "List registered agents with ghost status."}, s.handleListAgents)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "update_profile", Description: "Update the calling agent's profile fields."}, s.handleUpdateProfile)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "get_feature_requests", Description: "List feature requests by vote total."}, s.handleGetFeatureRequests)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "create_feature_request", Description: "File a new feature request."}, s.handleCreateFeatureRequest)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "vote_feature", Description: "Cast a +1/-1 vote on a feature request."}, s.handleVoteFeature)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "update_feature_status", Description: "Transition a feature request's status."}, s.handleUpdateFeatureStatus)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "delete_feature_request", Description: "Delete a feature request."}, s.handleDeleteFeatureRequest)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "heartbeat", Description: "Bump the calling agent's session heartbeat."}, s.handleHeartbeat)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "search_messages", Description: "Substring search over message content."}, s.handleSearchMessages)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "edit_message", Description: "Edit a message the caller sent."}, s.handleEditMessage)
	gosdk.AddTool(s.inner, &gosdk.Tool{Name: "react_message", Description: "Toggle an emoji reaction on a message."}, s.handleReactMessage)
}

// connID extracts the per-connection transport session id a CallToolRequest
// arrived on; identity lookups and register/disconnect bookkeeping are
// keyed by this, never by a tool argument.
func connID(req *gosdk.CallToolRequest) string {
	if req.Session == nil {
		return ""
	}
	return req.Session.ID()
}

// requireIdentity looks up the registered identity for this connection,
// returning an error result (not a Go error) when unregistered — tools
// that require identity must surface this as a tool-level failure, not a
// transport fault.
func (s *Server) requireIdentity(req *gosdk.CallToolRequest) (identity, *gosdk.CallToolResult) {
	id, ok := s.sessions.lookup(connID(req))
	if !ok {
		return identity{}, errorResult("not registered: call register first")
	}
	return id, nil
}

// ServeStdio runs the server on stdio until ctx is cancelled (cmd/fray-mcp).
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.inner.Run(ctx, &gosdk.StdioTransport{})
}

// HTTPHandler mounts the server on a streamable-HTTP endpoint for
// cmd/fray-hubd to serve alongside the REST/WS surface.
func (s *Server) HTTPHandler() http.Handler {
	return gosdk.NewStreamableHTTPHandler(func(*http.Request) *gosdk.Server { return s.inner }, nil)
}

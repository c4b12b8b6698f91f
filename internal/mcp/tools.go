package mcp

import (
	"context"
	"fmt"
	"time"

	gosdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/frayhub/fray/internal/broadcaster"
	"github.com/frayhub/fray/internal/prompts"
	"github.com/frayhub/fray/internal/registry"
	"github.com/frayhub/fray/internal/router"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

// RegisterArgs is the register tool's input.
type RegisterArgs struct {
	SessionID   string `json:"session_id,omitempty"`
	ProjectPath string `json:"project_path"`
	AgentName   string `json:"agent_name,omitempty"`
	ServerURL   string `json:"server_url,omitempty"`
	AgentType   string `json:"agent_type,omitempty"`
}

func (s *Server) handleRegister(ctx context.Context, req *gosdk.CallToolRequest, args RegisterArgs) (*gosdk.CallToolResult, any, error) {
	result, err := s.registry.RegisterOrConnect(registry.RegisterRequest{
		ProjectPath:       args.ProjectPath,
		AgentName:         args.AgentName,
		ServerURL:         args.ServerURL,
		ProviderSessionID: args.SessionID,
		AgentType:         types.AgentType(args.AgentType),
		WorkspaceGUID:     s.workspaceGUID,
	})
	if err != nil {
		return jsonResult(map[string]string{"error": err.Error()})
	}
	s.sessions.remember(connID(req), result.Agent.AgentName, s.workspaceGUID)

	out := map[string]any{
		"agent":           result.Agent,
		"project_channel": result.ProjectChannel,
		"reconnected":     result.Reconnected,
		"channel_created": result.ChannelCreated,
	}
	if s.prompts != nil {
		data := prompts.TemplateData{
			AgentName:      result.Agent.AgentName,
			AgentType:      string(result.Agent.AgentType),
			ProjectPath:    args.ProjectPath,
			ProjectChannel: result.ProjectChannel.Name,
			WorkspaceGUID:  s.workspaceGUID,
		}
		if result.Agent.ProjectName != nil {
			data.ProjectName = *result.Agent.ProjectName
		}
		if result.Reconnected {
			if text, err := s.prompts.Inject(data); err == nil {
				out["inject_prompt"] = text
			} else {
				s.log.Warn("render inject prompt: %v", err)
			}
		} else {
			if text, err := s.prompts.Master(data); err == nil {
				out["master_prompt"] = text
			} else {
				s.log.Warn("render master prompt: %v", err)
			}
		}
	}
	return jsonResult(out)
}

// DisconnectArgs is the disconnect tool's input.
type DisconnectArgs struct {
	AgentName string `json:"agent_name,omitempty"`
}

func (s *Server) handleDisconnect(ctx context.Context, req *gosdk.CallToolRequest, args DisconnectArgs) (*gosdk.CallToolResult, any, error) {
	name := args.AgentName
	if name == "" {
		id, ok := s.sessions.lookup(connID(req))
		if !ok {
			return jsonResult(map[string]string{"error": "not registered"})
		}
		name = id.agentName
	}
	if err := s.registry.Disconnect(name); err != nil {
		return jsonResult(map[string]string{"error": err.Error()})
	}
	s.sessions.forget(connID(req))
	return jsonResult(map[string]string{"status": "disconnected"})
}

// SendMessageArgs is the send_message tool's input.
type SendMessageArgs struct {
	Channel  string   `json:"channel"`
	Content  string   `json:"content"`
	Mentions []string `json:"mentions,omitempty"`
	ReplyTo  string   `json:"reply_to,omitempty"`
}

func (s *Server) handleSendMessage(ctx context.Context, req *gosdk.CallToolRequest, args SendMessageArgs) (*gosdk.CallToolResult, any, error) {
	id, errRes := s.requireIdentity(req)
	if errRes != nil {
		return errRes, nil, nil
	}

	sender, err := db.GetUserByName(s.store.DB, id.agentName)
	if err != nil {
		return nil, nil, err
	}
	if sender == nil {
		return jsonResult(map[string]string{"error": "caller identity no longer exists"})
	}
	channel, err := db.GetChannelByName(s.store.DB, s.workspaceGUID, normalizeChannel(args.Channel))
	if err != nil {
		return nil, nil, err
	}
	if channel == nil {
		return jsonResult(map[string]string{"error": fmt.Sprintf("channel not found: %s", args.Channel)})
	}

	msg, err := s.router.Send(router.SendRequest{
		SenderGUID:  sender.GUID,
		SenderName:  sender.Name,
		ChannelGUID: channel.GUID,
		ChannelName: channel.Name,
		Content:     args.Content,
		Mentions:    args.Mentions,
		ParentGUID:  args.ReplyTo,
	})
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"message": msg})
}

// GetMessagesArgs is the get_messages tool's input.
type GetMessagesArgs struct {
	Channel string `json:"channel,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

func (s *Server) handleGetMessages(ctx context.Context, req *gosdk.CallToolRequest, args GetMessagesArgs) (*gosdk.CallToolResult, any, error) {
	id, errRes := s.requireIdentity(req)
	if errRes != nil {
		return errRes, nil, nil
	}
	limit := args.Limit
	if limit <= 0 || limit > 10 {
		limit = 10
	}

	if args.Channel != "" {
		channel, err := db.GetChannelByName(s.store.DB, s.workspaceGUID, normalizeChannel(args.Channel))
		if err != nil {
			return nil, nil, err
		}
		if channel == nil {
			return jsonResult(map[string]string{"error": fmt.Sprintf("channel not found: %s", args.Channel)})
		}
		messages, err := db.GetMessagesInChannel(s.store.DB, channel.GUID, limit, "")
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(map[string]any{"messages": messages})
	}

	agent, err := db.GetAgentByName(s.store.DB, id.agentName)
	if err != nil {
		return nil, nil, err
	}
	if agent == nil {
		return jsonResult(map[string]string{"error": "caller identity no longer exists"})
	}
	messages, err := s.router.PriorityFetch(*agent, limit)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"messages": messages})
}

// CreateChannelArgs is the create_channel tool's input.
type CreateChannelArgs struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateChannel(ctx context.Context, req *gosdk.CallToolRequest, args CreateChannelArgs) (*gosdk.CallToolResult, any, error) {
	id, errRes := s.requireIdentity(req)
	if errRes != nil {
		return errRes, nil, nil
	}
	creator, err := db.GetUserByName(s.store.DB, id.agentName)
	if err != nil {
		return nil, nil, err
	}
	if creator == nil {
		return jsonResult(map[string]string{"error": "caller identity no longer exists"})
	}
	channel, err := s.channels.CreateCustom(args.Name, creator.GUID, s.workspaceGUID)
	if err != nil {
		return jsonResult(map[string]string{"error": err.Error()})
	}
	return jsonResult(map[string]any{"channel": channel})
}

// JoinChannelArgs is the join_channel tool's input.
type JoinChannelArgs struct {
	Channel string `json:"channel"`
}

func (s *Server) handleJoinChannel(ctx context.Context, req *gosdk.CallToolRequest, args JoinChannelArgs) (*gosdk.CallToolResult, any, error) {
	id, errRes := s.requireIdentity(req)
	if errRes != nil {
		return errRes, nil, nil
	}
	joiner, err := db.GetUserByName(s.store.DB, id.agentName)
	if err != nil {
		return nil, nil, err
	}
	if joiner == nil {
		return jsonResult(map[string]string{"error": "caller identity no longer exists"})
	}
	status, err := s.channels.Join(joiner.GUID, args.Channel, s.workspaceGUID)
	if err != nil {
		return jsonResult(map[string]string{"error": err.Error()})
	}
	return jsonResult(map[string]string{"status": string(status)})
}

// SetChannelTopicArgs is the set_channel_topic tool's input.
type SetChannelTopicArgs struct {
	Channel string `json:"channel"`
	Topic   string `json:"topic"`
}

func (s *Server) handleSetChannelTopic(ctx context.Context, req *gosdk.CallToolRequest, args SetChannelTopicArgs) (*gosdk.CallToolResult, any, error) {
	channel, err := db.GetChannelByName(s.store.DB, s.workspaceGUID, normalizeChannel(args.Channel))
	if err != nil {
		return nil, nil, err
	}
	if channel == nil {
		return jsonResult(map[string]string{"error": fmt.Sprintf("channel not found: %s", args.Channel)})
	}
	if err := s.channels.SetTopic(channel.GUID, args.Topic); err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]string{"status": "ok"})
}

func (s *Server) handleListChannels(ctx context.Context, req *gosdk.CallToolRequest, args struct{}) (*gosdk.CallToolResult, any, error) {
	list, err := s.channels.List(s.workspaceGUID)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"channels": list})
}

func (s *Server) handleListAgents(ctx context.Context, req *gosdk.CallToolRequest, args struct{}) (*gosdk.CallToolResult, any, error) {
	agents, err := db.ListAgents(s.store.DB, s.workspaceGUID)
	if err != nil {
		return nil, nil, err
	}

	type agentWithGhost struct {
		types.Agent
		IsGhost bool `json:"is_ghost"`
	}
	out := make([]agentWithGhost, len(agents))
	for i, a := range agents {
		out[i] = agentWithGhost{Agent: a, IsGhost: s.registry.IsGhost(a.AgentName)}
	}
	return jsonResult(map[string]any{"agents": out})
}

// UpdateProfileArgs is the update_profile tool's input.
type UpdateProfileArgs struct {
	Description *string `json:"description,omitempty"`
	Personality *string `json:"personality,omitempty"`
	CurrentTask *string `json:"current_task,omitempty"`
	Gender      *string `json:"gender,omitempty"`
}

func (s *Server) handleUpdateProfile(ctx context.Context, req *gosdk.CallToolRequest, args UpdateProfileArgs) (*gosdk.CallToolResult, any, error) {
	id, errRes := s.requireIdentity(req)
	if errRes != nil {
		return errRes, nil, nil
	}
	agent, err := db.GetAgentByName(s.store.DB, id.agentName)
	if err != nil {
		return nil, nil, err
	}
	if agent == nil {
		return jsonResult(map[string]string{"error": "caller identity no longer exists"})
	}
	update := db.AgentProfileUpdate{
		Description: args.Description,
		Personality: args.Personality,
		CurrentTask: args.CurrentTask,
		Gender:      args.Gender,
	}
	if err := db.UpdateAgentProfile(s.store.DB, agent.UserGUID, update); err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]string{"status": "ok"})
}

// GetFeatureRequestsArgs is the get_feature_requests tool's input.
type GetFeatureRequestsArgs struct {
	Status string `json:"status,omitempty"`
}

func (s *Server) handleGetFeatureRequests(ctx context.Context, req *gosdk.CallToolRequest, args GetFeatureRequestsArgs) (*gosdk.CallToolResult, any, error) {
	features, err := db.ListFeatureRequests(s.store.DB, types.FeatureStatus(args.Status))
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"features": features})
}

// CreateFeatureRequestArgs is the create_feature_request tool's input.
type CreateFeatureRequestArgs struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateFeatureRequest(ctx context.Context, req *gosdk.CallToolRequest, args CreateFeatureRequestArgs) (*gosdk.CallToolResult, any, error) {
	id, errRes := s.requireIdentity(req)
	if errRes != nil {
		return errRes, nil, nil
	}
	creator, err := db.GetUserByName(s.store.DB, id.agentName)
	if err != nil {
		return nil, nil, err
	}
	if creator == nil {
		return jsonResult(map[string]string{"error": "caller identity no longer exists"})
	}

	feature := types.FeatureRequest{Title: args.Title, CreatedBy: creator.GUID, CreatedAt: time.Now().Unix()}
	if args.Description != "" {
		feature.Description = &args.Description
	}
	created, err := db.CreateFeatureRequest(s.store.DB, feature)
	if err != nil {
		return nil, nil, err
	}
	s.hub.Broadcast(broadcaster.FeatureUpdateEvent(created))
	return jsonResult(map[string]any{"feature": created})
}

// VoteFeatureArgs is the vote_feature tool's input.
type VoteFeatureArgs struct {
	FeatureID string `json:"feature_id"`
	Vote      int    `json:"vote"`
}

func (s *Server) handleVoteFeature(ctx context.Context, req *gosdk.CallToolRequest, args VoteFeatureArgs) (*gosdk.CallToolResult, any, error) {
	if args.Vote != 1 && args.Vote != -1 {
		return jsonResult(map[string]string{"error": "vote must be +1 or -1"})
	}
	id, errRes := s.requireIdentity(req)
	if errRes != nil {
		return errRes, nil, nil
	}
	voter, err := db.GetUserByName(s.store.DB, id.agentName)
	if err != nil {
		return nil, nil, err
	}
	if voter == nil {
		return jsonResult(map[string]string{"error": "caller identity no longer exists"})
	}
	if err := db.CastVote(s.store.DB, args.FeatureID, voter.GUID, args.Vote, time.Now().Unix()); err != nil {
		return nil, nil, err
	}
	feature, err := db.GetFeatureRequest(s.store.DB, args.FeatureID)
	if err != nil {
		return nil, nil, err
	}
	if feature != nil {
		s.hub.Broadcast(broadcaster.FeatureUpdateEvent(*feature))
	}
	return jsonResult(map[string]any{"feature": feature})
}

// UpdateFeatureStatusArgs is the update_feature_status tool's input.
type UpdateFeatureStatusArgs struct {
	FeatureID string `json:"feature_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) handleUpdateFeatureStatus(ctx context.Context, req *gosdk.CallToolRequest, args UpdateFeatureStatusArgs) (*gosdk.CallToolResult, any, error) {
	var reason *string
	if args.Reason != "" {
		reason = &args.Reason
	}
	if err := db.SetFeatureStatus(s.store.DB, args.FeatureID, types.FeatureStatus(args.Status), reason); err != nil {
		return nil, nil, err
	}
	feature, err := db.GetFeatureRequest(s.store.DB, args.FeatureID)
	if err != nil {
		return nil, nil, err
	}
	if feature != nil {
		s.hub.Broadcast(broadcaster.FeatureUpdateEvent(*feature))
	}
	return jsonResult(map[string]any{"feature": feature})
}

// DeleteFeatureRequestArgs is the delete_feature_request tool's input.
type DeleteFeatureRequestArgs struct {
	FeatureID string `json:"feature_id"`
}

func (s *Server) handleDeleteFeatureRequest(ctx context.Context, req *gosdk.CallToolRequest, args DeleteFeatureRequestArgs) (*gosdk.CallToolResult, any, error) {
	if err := db.DeleteFeatureRequest(s.store.DB, args.FeatureID); err != nil {
		return nil, nil, err
	}
	s.hub.Broadcast(broadcaster.FeatureUpdateEvent(map[string]string{"guid": args.FeatureID, "deleted": "true"}))
	return jsonResult(map[string]string{"status": "deleted"})
}

func (s *Server) handleHeartbeat(ctx context.Context, req *gosdk.CallToolRequest, args struct{}) (*gosdk.CallToolResult, any, error) {
	id, errRes := s.requireIdentity(req)
	if errRes != nil {
		return errRes, nil, nil
	}
	if err := s.registry.Heartbeat(id.agentName); err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]string{"status": "ok"})
}

// SearchMessagesArgs is the search_messages tool's input.
type SearchMessagesArgs struct {
	Query   string `json:"query"`
	Channel string `json:"channel,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

func (s *Server) handleSearchMessages(ctx context.Context, req *gosdk.CallToolRequest, args SearchMessagesArgs) (*gosdk.CallToolResult, any, error) {
	filter := db.SearchFilter{Limit: args.Limit}
	if args.Channel != "" {
		channel, err := db.GetChannelByName(s.store.DB, s.workspaceGUID, normalizeChannel(args.Channel))
		if err != nil {
			return nil, nil, err
		}
		if channel != nil {
			filter.ChannelGUID = channel.GUID
		}
	}
	messages, err := s.router.Search(args.Query, filter)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(map[string]any{"messages": messages})
}

// EditMessageArgs is the edit_message tool's input.
type EditMessageArgs struct {
	Channel   string `json:"channel"`
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
}

func (s *Server) handleEditMessage(ctx context.Context, req *gosdk.CallToolRequest, args EditMessageArgs) (*gosdk.CallToolResult, any, error) {
	id, errRes := s.requireIdentity(req)
	if errRes != nil {
		return errRes, nil, nil
	}
	sender, err := db.GetUserByName(s.store.DB, id.agentName)
	if err != nil {
		return nil, nil, err
	}
	if sender == nil {
		return jsonResult(map[string]string{"error": "caller identity no longer exists"})
	}
	msg, err := s.router.Edit(args.MessageID, sender.GUID, args.Content)
	if err != nil {
		return jsonResult(map[string]string{"error": err.Error()})
	}
	return jsonResult(map[string]any{"message": msg})
}

// ReactMessageArgs is the react_message tool's input.
type ReactMessageArgs struct {
	Channel   string `json:"channel"`
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

func (s *Server) handleReactMessage(ctx context.Context, req *gosdk.CallToolRequest, args ReactMessageArgs) (*gosdk.CallToolResult, any, error) {
	id, errRes := s.requireIdentity(req)
	if errRes != nil {
		return errRes, nil, nil
	}
	reactor, err := db.GetUserByName(s.store.DB, id.agentName)
	if err != nil {
		return nil, nil, err
	}
	if reactor == nil {
		return jsonResult(map[string]string{"error": "caller identity no longer exists"})
	}
	action, err := s.router.React(args.MessageID, reactor.GUID, args.Emoji)
	if err != nil {
		return jsonResult(map[string]string{"error": err.Error()})
	}
	return jsonResult(map[string]string{"action": string(action)})
}

func normalizeChannel(name string) string {
	if len(name) > 0 && name[0] == '#' {
		return name[1:]
	}
	return name
}

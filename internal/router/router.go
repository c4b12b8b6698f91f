// Package router implements the Message Router component:
// send/edit/delete/pin/react/search over the Store, broadcasting every
// mutation and triggering the Invoker on send.
package router

import (
	"fmt"
	"time"

	"github.com/frayhub/fray/internal/broadcaster"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

// replyContextMaxLen is the truncation length for a quoted parent message in
// a reply-context prefix.
const replyContextMaxLen = 200

// defaultPriorityLimit and maxPriorityLimit bound the agent priority read.
const (
	defaultPriorityLimit = 10
	maxPriorityLimit     = 10
)

// InvocationTrigger is the Invoker's entry point as seen by the Router,
// decoupling the two packages (the Invoker never needs to call back into
// the Router, so this avoids an import cycle).
type InvocationTrigger interface {
	InvokeForMessage(senderName, channelGUID, channelName, content, messageGUID string, mentions []string, depth int)
}

// Router is the Message Router singleton.
type Router struct {
	store   *db.Store
	hub     *broadcaster.Hub
	invoker InvocationTrigger
}

// New constructs a Router. invoker may be nil in tests that don't exercise
// invocation triggering.
func New(store *db.Store, hub *broadcaster.Hub, invoker InvocationTrigger) *Router {
	return &Router{store: store, hub: hub, invoker: invoker}
}

// SendRequest is the input to Send.
type SendRequest struct {
	SenderGUID  string
	SenderName  string
	ChannelGUID string
	ChannelName string
	Content     string
	Mentions    []string
	ParentGUID  string
}

// Send persists a message, broadcasts new_message, and triggers the Invoker
// fire-and-forget. If ParentGUID is set, the text passed to the Invoker is
// prefixed with a reply-context header; the persisted content is unprefixed.
func (r *Router) Send(req SendRequest) (types.Message, error) {
	now := time.Now().Unix()
	var parentGUID *string
	if req.ParentGUID != "" {
		parent, err := db.GetMessage(r.store.DB, req.ParentGUID)
		if err != nil {
			return types.Message{}, err
		}
		if parent == nil {
			return types.Message{}, fmt.Errorf("parent message not found: %s", req.ParentGUID)
		}
		if parent.ChannelGUID != req.ChannelGUID {
			return types.Message{}, fmt.Errorf("parent message %s is in another channel", req.ParentGUID)
		}
		parentGUID = &req.ParentGUID
	}

	msg, err := db.CreateMessage(r.store.DB, types.Message{
		ChannelGUID: req.ChannelGUID,
		SenderGUID:  req.SenderGUID,
		Content:     req.Content,
		Mentions:    req.Mentions,
		ParentGUID:  parentGUID,
		CreatedAt:   now,
	})
	if err != nil {
		return types.Message{}, err
	}

	r.hub.Broadcast(broadcaster.NewMessageEvent(req.ChannelGUID, msg))

	if r.invoker != nil {
		invokeContent, err := r.buildInvokeContent(req)
		if err != nil {
			return msg, err
		}
		r.invoker.InvokeForMessage(req.SenderName, req.ChannelGUID, req.ChannelName, invokeContent, msg.GUID, req.Mentions, 0)
	}

	return msg, nil
}

func (r *Router) buildInvokeContent(req SendRequest) (string, error) {
	if req.ParentGUID == "" {
		return req.Content, nil
	}

	parent, err := db.GetMessage(r.store.DB, req.ParentGUID)
	if err != nil {
		return "", err
	}
	if parent == nil {
		return req.Content, nil
	}

	sender, err := db.GetUserByGUID(r.store.DB, parent.SenderGUID)
	if err != nil {
		return "", err
	}
	senderName := parent.SenderGUID
	if sender != nil {
		senderName = sender.Name
	}

	quoted := parent.Content
	if runes := []rune(quoted); len(runes) > replyContextMaxLen {
		quoted = string(runes[:replyContextMaxLen])
	}

	return fmt.Sprintf("[Replying to %s: \"%s\"]\n\n%s", senderName, quoted, req.Content), nil
}

// PriorityFetch returns up to limit messages for agentName, assembled from
// mention/project/member buckets in priority order and deduplicated by guid.
func (r *Router) PriorityFetch(agent types.Agent, limit int) ([]types.PriorityMessage, error) {
	if limit <= 0 || limit > maxPriorityLimit {
		limit = defaultPriorityLimit
	}

	memberGUIDs, err := db.ListMemberChannelGUIDs(r.store.DB, agent.UserGUID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var result []types.PriorityMessage

	appendBucket := func(messages []types.Message, bucket types.PriorityBucket) {
		for _, m := range messages {
			if len(result) >= limit {
				return
			}
			if _, ok := seen[m.GUID]; ok {
				continue
			}
			seen[m.GUID] = struct{}{}
			result = append(result, types.PriorityMessage{Message: m, Priority: bucket})
		}
	}

	mentioned, err := db.GetMessagesMentioning(r.store.DB, memberGUIDs, agent.AgentName)
	if err != nil {
		return nil, err
	}
	appendBucket(mentioned, types.PriorityMention)

	if agent.ProjectName != nil && len(result) < limit {
		projectChannelName := "project-" + *agent.ProjectName
		projectChannel, err := db.GetChannelByName(r.store.DB, agent.WorkspaceGUID, projectChannelName)
		if err != nil {
			return nil, err
		}
		if projectChannel != nil {
			projectMessages, err := db.GetMessagesInChannel(r.store.DB, projectChannel.GUID, limit, "")
			if err != nil {
				return nil, err
			}
			appendBucket(reverseMessages(projectMessages), types.PriorityProject)
		}
	}

	for _, channelGUID := range memberGUIDs {
		if len(result) >= limit {
			break
		}
		messages, err := db.GetMessagesInChannel(r.store.DB, channelGUID, limit, "")
		if err != nil {
			return nil, err
		}
		appendBucket(reverseMessages(messages), types.PriorityOther)
	}

	return result, nil
}

func reverseMessages(messages []types.Message) []types.Message {
	out := make([]types.Message, len(messages))
	for i, m := range messages {
		out[len(messages)-1-i] = m
	}
	return out
}

// Edit updates a message's content; only the sender may edit.
func (r *Router) Edit(messageGUID, senderGUID, newContent string) (types.Message, error) {
	now := time.Now().Unix()
	if err := db.EditMessage(r.store.DB, messageGUID, senderGUID, newContent, now); err != nil {
		return types.Message{}, err
	}

	msg, err := db.GetMessage(r.store.DB, messageGUID)
	if err != nil {
		return types.Message{}, err
	}
	r.hub.Broadcast(broadcaster.MessageEditedEvent(msg.ChannelGUID, msg))
	return *msg, nil
}

// React toggles a (message, user, emoji) reaction and broadcasts the result.
func (r *Router) React(messageGUID, userGUID, emoji string) (broadcaster.ReactionAction, error) {
	msg, err := db.GetMessage(r.store.DB, messageGUID)
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", fmt.Errorf("message not found: %s", messageGUID)
	}

	set, err := db.ToggleReaction(r.store.DB, messageGUID, userGUID, emoji, time.Now().Unix())
	if err != nil {
		return "", err
	}

	action := broadcaster.ReactionRemove
	if set {
		action = broadcaster.ReactionAdd
	}
	r.hub.Broadcast(broadcaster.ReactionEvent(msg.ChannelGUID, messageGUID, userGUID, emoji, action))
	return action, nil
}

// Pin toggles a message's pinned flag.
func (r *Router) Pin(messageGUID, pinnedBy string) (types.Message, error) {
	msg, err := db.TogglePin(r.store.DB, messageGUID, pinnedBy, time.Now().Unix())
	if err != nil {
		return types.Message{}, err
	}
	r.hub.Broadcast(broadcaster.MessageEditedEvent(msg.ChannelGUID, msg))
	return *msg, nil
}

// Search performs a substring+filter search, capped at 50 results.
func (r *Router) Search(query string, filter db.SearchFilter) ([]types.Message, error) {
	return db.SearchMessages(r.store.DB, query, filter)
}

// Delete removes a message; only the sender may delete.
func (r *Router) Delete(messageGUID, senderGUID string) error {
	msg, err := db.GetMessage(r.store.DB, messageGUID)
	if err != nil {
		return err
	}
	if msg == nil {
		return fmt.Errorf("message not found: %s", messageGUID)
	}

	if err := db.DeleteMessage(r.store.DB, messageGUID, senderGUID); err != nil {
		return err
	}
	r.hub.Broadcast(broadcaster.MessageDeletedEvent(msg.ChannelGUID, messageGUID))
	return nil
}

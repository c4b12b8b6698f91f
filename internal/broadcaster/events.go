// Package broadcaster implements the Broadcaster component: a
// WebSocket hub that fans typed events out to subscribed clients.
package broadcaster

// EventType enumerates the canonical broadcast event types.
type EventType string

const (
	EventNewMessage     EventType = "new_message"
	EventMessageDeleted EventType = "message_deleted"
	EventMessageEdited  EventType = "message_edited"
	EventReaction       EventType = "reaction"
	EventAgentStatus    EventType = "agent_status"
	EventAgentTyping    EventType = "agent_typing"
	EventAgentStreaming EventType = "agent_streaming"
	EventChannelCreated EventType = "channel_created"
	EventFeatureUpdate  EventType = "feature_update"
)

// Event is the wire shape pushed to every subscribed client: {type, data}.
type Event struct {
	Type EventType `json:"type"`
	// ChannelGUID is empty for events not scoped to a channel (agent_status,
	// channel_created, feature_update); those reach every client regardless
	// of subscription set.
	ChannelGUID string `json:"-"`
	Data        any    `json:"data"`
}

// NewMessageData is the payload for EventNewMessage.
type NewMessageData struct {
	Message any `json:"message"`
}

// NewMessageEvent builds a new_message event scoped to channelGUID.
func NewMessageEvent(channelGUID string, message any) Event {
	return Event{Type: EventNewMessage, ChannelGUID: channelGUID, Data: NewMessageData{Message: message}}
}

// MessageDeletedData is the payload for EventMessageDeleted.
type MessageDeletedData struct {
	MessageGUID string `json:"message_guid"`
}

// MessageDeletedEvent builds a message_deleted event.
func MessageDeletedEvent(channelGUID, messageGUID string) Event {
	return Event{Type: EventMessageDeleted, ChannelGUID: channelGUID, Data: MessageDeletedData{MessageGUID: messageGUID}}
}

// MessageEditedData is the payload for EventMessageEdited.
type MessageEditedData struct {
	Message any `json:"message"`
}

// MessageEditedEvent builds a message_edited event.
func MessageEditedEvent(channelGUID string, message any) Event {
	return Event{Type: EventMessageEdited, ChannelGUID: channelGUID, Data: MessageEditedData{Message: message}}
}

// ReactionAction distinguishes a reaction add from a remove.
type ReactionAction string

const (
	ReactionAdd    ReactionAction = "add"
	ReactionRemove ReactionAction = "remove"
)

// ReactionData is the payload for EventReaction.
type ReactionData struct {
	MessageGUID string         `json:"message_guid"`
	UserGUID    string         `json:"user_guid"`
	Emoji       string         `json:"emoji"`
	Action      ReactionAction `json:"action"`
}

// ReactionEvent builds a reaction event.
func ReactionEvent(channelGUID, messageGUID, userGUID, emoji string, action ReactionAction) Event {
	return Event{Type: EventReaction, ChannelGUID: channelGUID, Data: ReactionData{
		MessageGUID: messageGUID,
		UserGUID:    userGUID,
		Emoji:       emoji,
		Action:      action,
	}}
}

// AgentStatusData is the payload for EventAgentStatus.
type AgentStatusData struct {
	AgentName string `json:"agent_name"`
	Status    string `json:"status"`
	IsGhost   bool   `json:"is_ghost"`
}

// AgentStatusEvent builds an agent_status event; not scoped to a channel.
func AgentStatusEvent(agentName, status string, isGhost bool) Event {
	return Event{Type: EventAgentStatus, Data: AgentStatusData{AgentName: agentName, Status: status, IsGhost: isGhost}}
}

// AgentTypingData is the payload for EventAgentTyping.
type AgentTypingData struct {
	AgentName string `json:"agent_name"`
	Typing    bool   `json:"typing"`
	Error     string `json:"error,omitempty"`
}

// AgentTypingEvent builds an agent_typing event scoped to a channel.
func AgentTypingEvent(channelGUID, agentName string, typing bool, errMsg string) Event {
	return Event{Type: EventAgentTyping, ChannelGUID: channelGUID, Data: AgentTypingData{
		AgentName: agentName,
		Typing:    typing,
		Error:     errMsg,
	}}
}

// AgentStreamingData is the payload for EventAgentStreaming.
type AgentStreamingData struct {
	AgentName string `json:"agent_name"`
	Delta     string `json:"delta"`
}

// AgentStreamingEvent builds an agent_streaming event scoped to a channel.
func AgentStreamingEvent(channelGUID, agentName, delta string) Event {
	return Event{Type: EventAgentStreaming, ChannelGUID: channelGUID, Data: AgentStreamingData{
		AgentName: agentName,
		Delta:     delta,
	}}
}

// ChannelCreatedData is the payload for EventChannelCreated.
type ChannelCreatedData struct {
	Channel any `json:"channel"`
}

// ChannelCreatedEvent builds a channel_created event; not scoped to a channel
// subscription (every client should learn about new channels).
func ChannelCreatedEvent(channel any) Event {
	return Event{Type: EventChannelCreated, Data: ChannelCreatedData{Channel: channel}}
}

// FeatureUpdateData is the payload for EventFeatureUpdate.
type FeatureUpdateData struct {
	Feature any `json:"feature"`
}

// FeatureUpdateEvent builds a feature_update event; not scoped to a channel.
func FeatureUpdateEvent(feature any) Event {
	return Event{Type: EventFeatureUpdate, Data: FeatureUpdateData{Feature: feature}}
}

// Package channels implements the Channel Manager component: a
// thin layer over the Store adding name normalization, DM provisioning, and
// the broadcasts channel mutations require.
package channels

import (
	"fmt"
	"strings"
	"time"

	"github.com/frayhub/fray/internal/broadcaster"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

// Manager is the Channel Manager singleton.
type Manager struct {
	store *db.Store
	hub   *broadcaster.Hub
}

// New constructs a Manager backed by store, broadcasting through hub.
func New(store *db.Store, hub *broadcaster.Hub) *Manager {
	return &Manager{store: store, hub: hub}
}

// List returns non-archived channels in workspaceGUID, ordered by name.
func (m *Manager) List(workspaceGUID string) ([]types.Channel, error) {
	return db.ListChannels(m.store.DB, workspaceGUID)
}

// JoinStatus distinguishes a fresh join from a no-op repeat join.
type JoinStatus string

const (
	JoinStatusJoined        JoinStatus = "joined"
	JoinStatusAlreadyMember JoinStatus = "already_member"
)

// Join adds userGUID to channelName in workspaceGUID, idempotently.
func (m *Manager) Join(userGUID, channelName, workspaceGUID string) (JoinStatus, error) {
	channel, err := db.GetChannelByName(m.store.DB, workspaceGUID, normalizeChannelName(channelName))
	if err != nil {
		return "", err
	}
	if channel == nil {
		return "", fmt.Errorf("channel not found: %s", channelName)
	}

	member, err := db.IsChannelMember(m.store.DB, channel.GUID, userGUID)
	if err != nil {
		return "", err
	}
	if member {
		return JoinStatusAlreadyMember, nil
	}
	if _, err := db.AddChannelMember(m.store.DB, channel.GUID, userGUID, time.Now().Unix()); err != nil {
		return "", err
	}
	return JoinStatusJoined, nil
}

// CreateCustom creates a user-defined channel, prefixing "#" if missing and
// rejecting a duplicate name within the workspace.
func (m *Manager) CreateCustom(name, createdBy, workspaceGUID string) (types.Channel, error) {
	normalized := normalizeChannelName(name)

	existing, err := db.GetChannelByName(m.store.DB, workspaceGUID, normalized)
	if err != nil {
		return types.Channel{}, err
	}
	if existing != nil {
		return types.Channel{}, fmt.Errorf("channel already exists: %s", normalized)
	}

	channel, err := db.CreateChannel(m.store.DB, types.Channel{
		WorkspaceGUID: workspaceGUID,
		Name:          normalized,
		Type:          types.ChannelTypeCustom,
		CreatedBy:     createdBy,
		CreatedAt:     time.Now().Unix(),
	})
	if err != nil {
		return types.Channel{}, err
	}

	if _, err := db.AddChannelMember(m.store.DB, channel.GUID, createdBy, time.Now().Unix()); err != nil {
		return types.Channel{}, err
	}

	m.hub.Broadcast(broadcaster.ChannelCreatedEvent(channel))
	return channel, nil
}

// SetTopic trims and sets the channel topic; an empty string clears it. No
// length cap beyond 500 characters is enforced upstream of this layer.
func (m *Manager) SetTopic(channelGUID, topic string) error {
	return db.SetChannelTopic(m.store.DB, channelGUID, strings.TrimSpace(topic))
}

// EnsureDM returns the `#dm-{agentName}` channel, creating it (and adding
// agentUserGUID + humanUserGUID as members) if it doesn't already exist.
// Idempotent.
func (m *Manager) EnsureDM(agentName, agentUserGUID, humanUserGUID, workspaceGUID string) (types.Channel, error) {
	name := fmt.Sprintf("dm-%s", agentName)

	existing, err := db.GetChannelByName(m.store.DB, workspaceGUID, name)
	if err != nil {
		return types.Channel{}, err
	}

	channel := types.Channel{}
	if existing == nil {
		channel, err = db.CreateChannel(m.store.DB, types.Channel{
			WorkspaceGUID: workspaceGUID,
			Name:          name,
			Type:          types.ChannelTypeDM,
			CreatedBy:     humanUserGUID,
			CreatedAt:     time.Now().Unix(),
		})
		if err != nil {
			return types.Channel{}, err
		}
		m.hub.Broadcast(broadcaster.ChannelCreatedEvent(channel))
	} else {
		channel = *existing
	}

	now := time.Now().Unix()
	if _, err := db.AddChannelMember(m.store.DB, channel.GUID, agentUserGUID, now); err != nil {
		return types.Channel{}, err
	}
	if _, err := db.AddChannelMember(m.store.DB, channel.GUID, humanUserGUID, now); err != nil {
		return types.Channel{}, err
	}
	return channel, nil
}

func normalizeChannelName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "#")
}

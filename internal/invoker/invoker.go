// Package invoker implements the Invoker component: resolves
// invocation targets for a sent message, prompts the matching Provider
// Adapter, persists and broadcasts the response, and chains on
// response-level mentions up to a depth cap.
package invoker

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/frayhub/fray/internal/applog"
	"github.com/frayhub/fray/internal/broadcaster"
	"github.com/frayhub/fray/internal/providers"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

// MaxChainDepth bounds recursive response-mention chaining.
const MaxChainDepth = 5

// recentMessageCount is how many prior channel messages are included as
// context in an @-mention prompt.
const recentMessageCount = 5

// Invoker is the process-wide invocation singleton.
type Invoker struct {
	store         *db.Store
	hub           *broadcaster.Hub
	providers     *providers.Registry
	workspaceGUID string
	log           *applog.Logger

	tasksMu sync.Mutex
	tasks   map[string]struct{}
}

// New constructs an Invoker against a single-workspace deployment;
// workspaceGUID scopes agent lookup and @all expansion.
func New(store *db.Store, hub *broadcaster.Hub, providerRegistry *providers.Registry, workspaceGUID string) *Invoker {
	return &Invoker{
		store:         store,
		hub:           hub,
		providers:     providerRegistry,
		workspaceGUID: workspaceGUID,
		log:           applog.New("invoker"),
		tasks:         make(map[string]struct{}),
	}
}

// InvokeForMessage implements router.InvocationTrigger: fire-and-forget,
// the work runs in a background task tracked in a set so it isn't
// collected before it completes.
func (inv *Invoker) InvokeForMessage(senderName, channelGUID, channelName, content, messageGUID string, mentions []string, depth int) {
	if depth >= MaxChainDepth {
		return
	}

	taskID := inv.trackTask()
	go func() {
		defer inv.untrackTask(taskID)
		inv.run(senderName, channelGUID, channelName, content, messageGUID, mentions, depth)
	}()
}

func (inv *Invoker) trackTask() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	id := hex.EncodeToString(buf)

	inv.tasksMu.Lock()
	inv.tasks[id] = struct{}{}
	inv.tasksMu.Unlock()
	return id
}

func (inv *Invoker) untrackTask(id string) {
	inv.tasksMu.Lock()
	delete(inv.tasks, id)
	inv.tasksMu.Unlock()
}

// PendingTasks reports the number of in-flight invocation chains; used by
// shutdown logging, not for blocking — in-flight invocations are abandoned
// on shutdown.
func (inv *Invoker) PendingTasks() int {
	inv.tasksMu.Lock()
	defer inv.tasksMu.Unlock()
	return len(inv.tasks)
}

func (inv *Invoker) run(senderName, channelGUID, channelName, content, messageGUID string, mentions []string, depth int) {
	targets, err := inv.resolveTargets(senderName, channelGUID, channelName, mentions)
	if err != nil {
		inv.log.Error("resolve targets for channel %s: %v", channelGUID, err)
		return
	}

	g, ctx := errgroup.WithContext(context.Background())
	for _, target := range targets {
		target := target
		g.Go(func() error {
			inv.invokeTarget(ctx, target, senderName, channelGUID, channelName, content, messageGUID, depth)
			return nil
		})
	}
	_ = g.Wait()
}

// invocationTarget is one resolved agent to prompt.
type invocationTarget struct {
	agentName string
	// dmRaw is true for a DM target: content is passed verbatim with no
	// channel-context header.
	dmRaw bool
	// silent suppresses the typing(true) indicator until liveness is
	// confirmed, and drops unreachable targets without broadcasting an
	// error.
	silent bool
}

func (inv *Invoker) invokeTarget(ctx context.Context, target invocationTarget, senderName, channelGUID, channelName, content, messageGUID string, depth int) {
	agent, err := db.GetAgentByName(inv.store.DB, target.agentName)
	if err != nil {
		inv.log.Error("lookup agent %s: %v", target.agentName, err)
		return
	}
	if agent == nil && !target.dmRaw {
		// A mention that doesn't reference a registered agent is not an
		// invocation at all; no typing events.
		return
	}

	if !target.silent {
		inv.hub.Broadcast(broadcaster.AgentTypingEvent(channelGUID, target.agentName, true, ""))
	}

	if agent == nil || !agent.Invocable() {
		if !target.silent {
			inv.hub.Broadcast(broadcaster.AgentTypingEvent(channelGUID, target.agentName, false,
				fmt.Sprintf("%s is not reachable", target.agentName)))
		}
		return
	}

	adapter := inv.providers.For(agent.AgentType)
	if adapter == nil {
		if !target.silent {
			inv.hub.Broadcast(broadcaster.AgentTypingEvent(channelGUID, target.agentName, false,
				fmt.Sprintf("%s is not reachable", target.agentName)))
		}
		return
	}

	if target.silent {
		if !adapter.IsSessionAlive(*agent) {
			return
		}
		inv.hub.Broadcast(broadcaster.AgentTypingEvent(channelGUID, target.agentName, true, ""))
	}

	if adapter.IsSessionBusy(*agent) {
		inv.log.Warn("agent %s is busy, prompt will queue", target.agentName)
	}

	prompt, err := inv.buildPrompt(target, senderName, channelGUID, channelName, content, messageGUID)
	if err != nil {
		inv.log.Error("build prompt for %s: %v", target.agentName, err)
		inv.hub.Broadcast(broadcaster.AgentTypingEvent(channelGUID, target.agentName, false, "encountered an error"))
		return
	}

	cb := providers.Callbacks{
		OnTypingStart: func() {
			inv.hub.Broadcast(broadcaster.AgentTypingEvent(channelGUID, target.agentName, true, ""))
		},
		OnTextDelta: func(delta string) {
			inv.hub.Broadcast(broadcaster.AgentStreamingEvent(channelGUID, target.agentName, delta))
		},
		OnError: func(msg string) {
			inv.log.Error("agent %s: %s", target.agentName, msg)
		},
	}

	resp, err := adapter.Prompt(ctx, *agent, prompt, cb)
	if err != nil {
		inv.hub.Broadcast(broadcaster.AgentTypingEvent(channelGUID, target.agentName, false, "encountered an error"))
		return
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		inv.hub.Broadcast(broadcaster.AgentTypingEvent(channelGUID, target.agentName, false, fmt.Sprintf("%s did not respond", target.agentName)))
		return
	}

	registered, err := inv.registeredAgentNames()
	if err != nil {
		inv.log.Error("list registered agents: %v", err)
		registered = map[string]struct{}{}
	}
	responseMentions := providers.ExtractResponseMentions(resp.Text, registered, target.agentName)

	msg, err := db.CreateMessage(inv.store.DB, types.Message{
		ChannelGUID: channelGUID,
		SenderGUID:  agent.UserGUID,
		Content:     resp.Text,
		Mentions:    responseMentions,
		CreatedAt:   time.Now().Unix(),
	})
	if err != nil {
		inv.log.Error("persist response from %s: %v", target.agentName, err)
		inv.hub.Broadcast(broadcaster.AgentTypingEvent(channelGUID, target.agentName, false, "encountered an error"))
		return
	}

	inv.hub.Broadcast(broadcaster.NewMessageEvent(channelGUID, msg))
	inv.hub.Broadcast(broadcaster.AgentTypingEvent(channelGUID, target.agentName, false, ""))

	if len(responseMentions) == 0 {
		return
	}
	if depth+1 >= MaxChainDepth {
		inv.log.Info("chain from %s stopped: depth cap reached", target.agentName)
		return
	}
	inv.InvokeForMessage(target.agentName, channelGUID, channelName, resp.Text, msg.GUID, responseMentions, depth+1)
}

func (inv *Invoker) registeredAgentNames() (map[string]struct{}, error) {
	agents, err := db.ListAgents(inv.store.DB, inv.workspaceGUID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]struct{}, len(agents))
	for _, a := range agents {
		names[a.AgentName] = struct{}{}
	}
	return names, nil
}

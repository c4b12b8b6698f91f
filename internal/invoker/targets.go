package invoker

import (
	"strings"

	"github.com/frayhub/fray/internal/core"
	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

// resolveTargets picks who a message wakes: the DM target (if channelName
// is a DM channel), @all expansion, and remaining explicit mentions, each
// filtered by the self-invocation guard.
func (inv *Invoker) resolveTargets(senderName, channelGUID, channelName string, mentions []string) ([]invocationTarget, error) {
	bareName := strings.TrimPrefix(channelName, "#")
	dmTarget, isDM := strings.CutPrefix(bareName, "dm-")

	var targets []invocationTarget
	seen := make(map[string]struct{})
	if isDM {
		// The DM target is never invoked twice in the same call, even if it
		// also appears in mentions.
		seen[dmTarget] = struct{}{}
		if dmTarget != senderName {
			targets = append(targets, invocationTarget{agentName: dmTarget, dmRaw: true})
		}
	}

	wantsAll := false
	for _, m := range mentions {
		if core.IsAllMention(m) {
			// @all is a no-op inside a DM channel.
			wantsAll = !isDM
			continue
		}
		if m == senderName {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		targets = append(targets, invocationTarget{agentName: m})
	}

	if wantsAll {
		expanded, err := inv.expandAll(bareName, senderName, seen)
		if err != nil {
			return nil, err
		}
		for _, name := range expanded {
			targets = append(targets, invocationTarget{agentName: name, silent: true})
		}
	}

	return targets, nil
}

// expandAll resolves "@all": all invocable non-system agents, scoped to
// the project if channelName is #project-{slug}, excluding the sender and
// anything already present in already.
func (inv *Invoker) expandAll(channelName, senderName string, already map[string]struct{}) ([]string, error) {
	var agents []types.Agent
	var err error
	if slug, isProjectChannel := strings.CutPrefix(channelName, "project-"); isProjectChannel {
		agents, err = db.ListAgentsByProjectName(inv.store.DB, inv.workspaceGUID, slug)
	} else {
		agents, err = db.ListAgents(inv.store.DB, inv.workspaceGUID)
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, a := range agents {
		if a.AgentName == senderName {
			continue
		}
		if _, dup := already[a.AgentName]; dup {
			continue
		}
		if !a.Invocable() {
			continue
		}
		names = append(names, a.AgentName)
	}
	return names, nil
}

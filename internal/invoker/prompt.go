package invoker

import (
	"fmt"
	"strings"

	db "github.com/frayhub/fray/internal/store"
	"github.com/frayhub/fray/internal/types"
)

// buildPrompt constructs the text sent to a target's provider adapter:
// raw content for a DM, or a fixed-form mention header plus recent
// channel context otherwise.
func (inv *Invoker) buildPrompt(target invocationTarget, senderName, channelGUID, channelName, content, messageGUID string) (string, error) {
	if target.dmRaw {
		return content, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[TalkTo] %s mentioned you in %s.\n\n", senderName, channelName)

	recent, err := db.GetMessagesInChannel(inv.store.DB, channelGUID, recentMessageCount, messageGUID)
	if err != nil {
		return "", err
	}
	if len(recent) > 0 {
		b.WriteString("Recent messages in the channel:\n")
		for _, m := range reverseMessages(recent) {
			name, err := inv.senderDisplayName(m.SenderGUID)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "  %s: %s\n", name, m.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "%s: %s", senderName, content)
	return b.String(), nil
}

func (inv *Invoker) senderDisplayName(userGUID string) (string, error) {
	user, err := db.GetUserByGUID(inv.store.DB, userGUID)
	if err != nil {
		return "", err
	}
	if user == nil {
		return userGUID, nil
	}
	return user.Name, nil
}

func reverseMessages(messages []types.Message) []types.Message {
	out := make([]types.Message, len(messages))
	for i, m := range messages {
		out[len(messages)-1-i] = m
	}
	return out
}

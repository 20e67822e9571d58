package bot

import (
	"strings"

	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/telegram"
)

// topicMarker prefixes the project key in a topic name, e.g.
// "[Jira&Bot]:key=PROJ".
const topicMarker = "[jira&bot]:key="

// A denial with an empty reason is dropped silently; otherwise the reason
// is sent back to the chat.

func ChatTypeIn(types ...string) access.Guard[Meta] {
	return func(m Meta) access.Decision {
		for _, t := range types {
			if m.ChatType == t {
				return access.Allow()
			}
		}
		return access.Deny("This command does not work in this chat type, allowed in: " + strings.Join(types, ", "))
	}
}

// ConfiguredSupergroup only lets through supergroup messages from the chat
// the bot is bound to. Other chat types pass. A zero chatID binds nothing.
func ConfiguredSupergroup(chatID int64) access.Guard[Meta] {
	return func(m Meta) access.Decision {
		if m.ChatType != telegram.ChatSupergroup {
			return access.Allow()
		}
		if chatID == 0 || m.ChatID != chatID {
			return access.Deny("Sorry, this bot does not support your chat")
		}
		return access.Allow()
	}
}

// TopicBound requires a forum topic whose name carries a project key.
func TopicBound() access.Guard[Meta] {
	return func(m Meta) access.Decision {
		if m.ThreadID == 0 {
			return access.Deny("")
		}
		if _, ok := TopicProjectKey(m.TopicName); !ok {
			return access.Deny("")
		}
		return access.Allow()
	}
}

func HasIdentity() access.Guard[Meta] {
	return func(m Meta) access.Decision {
		if m.Requester.IsZero() {
			return access.Deny("")
		}
		return access.Allow()
	}
}

// TopicProjectKey extracts the project key from a topic name. The marker is
// matched case-insensitively and the key is upper-cased.
func TopicProjectKey(topicName string) (string, bool) {
	i := indexFold(topicName, topicMarker)
	if i < 0 {
		return "", false
	}
	rest := strings.TrimSpace(topicName[i+len(topicMarker):])
	if f := strings.Fields(rest); len(f) > 0 {
		rest = f[0]
	}
	if rest == "" {
		return "", false
	}
	return strings.ToUpper(rest), true
}

func indexFold(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}

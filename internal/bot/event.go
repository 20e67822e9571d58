package bot

import (
	"strconv"
	"strings"

	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/telegram"
)

// Meta is what every event knows about where it came from.
type Meta struct {
	UpdateID  int64
	Requester access.RequesterIdentity
	FirstName string
	LastName  string
	ChatID    int64
	ChatType  string
	MessageID int
	ThreadID  int
	TopicName string
}

// Event is one decoded inbound update. The concrete types are
// CommandEvent, CallbackEvent, PhotoEvent and TextEvent.
type Event interface {
	EventMeta() Meta
	isEvent()
}

type CommandEvent struct {
	Meta
	Command string
	Args    []string
}

type CallbackEvent struct {
	Meta
	CallbackID string
	Action     string
	Args       []string
}

type PhotoEvent struct {
	Meta
	Caption string
	FileID  string
}

type TextEvent struct {
	Meta
	Text string
}

func (m Meta) EventMeta() Meta { return m }

func (CommandEvent) isEvent()  {}
func (CallbackEvent) isEvent() {}
func (PhotoEvent) isEvent()    {}
func (TextEvent) isEvent()     {}

// Decode classifies an update. Updates the bot does not act on are
// reported as not ok.
func Decode(u telegram.Update) (Event, bool) {
	if cq := u.CallbackQuery; cq != nil {
		meta := Meta{UpdateID: u.UpdateID}
		setSender(&meta, &cq.From)
		if cq.Message != nil {
			setMessage(&meta, cq.Message)
		} else {
			// inline keyboards are only sent to private chats
			meta.ChatID = cq.From.ID
			meta.ChatType = telegram.ChatPrivate
		}
		fields := strings.Fields(cq.Data)
		if len(fields) == 0 {
			return nil, false
		}
		return CallbackEvent{Meta: meta, CallbackID: cq.ID, Action: fields[0], Args: fields[1:]}, true
	}

	msg := u.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return nil, false
	}

	meta := Meta{UpdateID: u.UpdateID}
	setSender(&meta, msg.From)
	setMessage(&meta, msg)

	if len(msg.Photo) > 0 {
		largest := msg.Photo[0]
		for _, p := range msg.Photo[1:] {
			if p.Width*p.Height > largest.Width*largest.Height {
				largest = p
			}
		}
		return PhotoEvent{Meta: meta, Caption: msg.Caption, FileID: largest.FileID}, true
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil, false
	}
	if strings.HasPrefix(text, "/") {
		fields := strings.Fields(text)
		cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
		// "/start@my_bot" in groups
		if i := strings.IndexByte(cmd, '@'); i >= 0 {
			cmd = cmd[:i]
		}
		if cmd != "" {
			return CommandEvent{Meta: meta, Command: cmd, Args: fields[1:]}, true
		}
	}
	return TextEvent{Meta: meta, Text: msg.Text}, true
}

func setSender(m *Meta, from *telegram.User) {
	m.Requester = access.RequesterIdentity{ID: strconv.FormatInt(from.ID, 10), Username: from.Username}
	m.FirstName = from.FirstName
	m.LastName = from.LastName
}

func setMessage(m *Meta, msg *telegram.Message) {
	m.ChatID = msg.Chat.ID
	m.ChatType = msg.Chat.Type
	m.MessageID = msg.MessageID
	if msg.IsTopicMessage {
		m.ThreadID = msg.MessageThreadID
	}
	switch {
	case msg.ForumTopicCreated != nil:
		m.TopicName = msg.ForumTopicCreated.Name
	case msg.ReplyToMessage != nil && msg.ReplyToMessage.ForumTopicCreated != nil:
		m.TopicName = msg.ReplyToMessage.ForumTopicCreated.Name
	}
}

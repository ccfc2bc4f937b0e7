package bot

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Event is an inbound update resolved to exactly one kind.
type Event interface {
	// ShardKey orders events: the same key is always handled in sequence.
	ShardKey() int64
	Kind() string
}

type JoinRequest struct {
	ChatID int64
	UserID int64
}

type Command struct {
	ChatID int64
	UserID int64
	Name   string
	Args   string
}

type ChannelPost struct {
	ChatID    int64
	MessageID int
	Caption   string
	FileName  string
	HasMedia  bool
}

type TextMessage struct {
	ChatID int64
	UserID int64
	Text   string
}

type CallbackQuery struct {
	ID     string
	ChatID int64
	UserID int64
	Data   string
}

func (e JoinRequest) ShardKey() int64   { return e.UserID }
func (e Command) ShardKey() int64       { return e.ChatID }
func (e ChannelPost) ShardKey() int64   { return e.ChatID }
func (e TextMessage) ShardKey() int64   { return e.ChatID }
func (e CallbackQuery) ShardKey() int64 { return e.UserID }

func (JoinRequest) Kind() string   { return "join_request" }
func (Command) Kind() string       { return "command" }
func (ChannelPost) Kind() string   { return "channel_post" }
func (TextMessage) Kind() string   { return "text" }
func (CallbackQuery) Kind() string { return "callback" }

// Decode classifies an update. It returns false for kinds the bot ignores.
func Decode(u tgbotapi.Update) (Event, bool) {
	switch {
	case u.ChatJoinRequest != nil:
		return JoinRequest{ChatID: u.ChatJoinRequest.Chat.ID, UserID: u.ChatJoinRequest.From.ID}, true

	case u.ChannelPost != nil:
		return decodeChannelPost(u.ChannelPost), true

	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		if q.From == nil {
			return nil, false
		}
		ev := CallbackQuery{ID: q.ID, UserID: q.From.ID, ChatID: q.From.ID, Data: q.Data}
		if q.Message != nil && q.Message.Chat != nil {
			ev.ChatID = q.Message.Chat.ID
		}
		return ev, true

	case u.Message != nil:
		m := u.Message
		if m.From == nil || m.Chat == nil {
			return nil, false
		}
		if m.IsCommand() {
			return Command{
				ChatID: m.Chat.ID,
				UserID: m.From.ID,
				Name:   strings.ToLower(m.Command()),
				Args:   strings.TrimSpace(m.CommandArguments()),
			}, true
		}
		text := strings.TrimSpace(m.Text)
		if text == "" {
			return nil, false
		}
		return TextMessage{ChatID: m.Chat.ID, UserID: m.From.ID, Text: text}, true
	}
	return nil, false
}

func decodeChannelPost(m *tgbotapi.Message) ChannelPost {
	post := ChannelPost{MessageID: m.MessageID, Caption: m.Caption}
	if m.Chat != nil {
		post.ChatID = m.Chat.ID
	}
	switch {
	case m.Document != nil:
		post.HasMedia = true
		post.FileName = m.Document.FileName
	case m.Video != nil:
		post.HasMedia = true
		post.FileName = m.Video.FileName
	}
	return post
}

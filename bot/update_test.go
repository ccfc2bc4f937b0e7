package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandMessage(chatID, userID int64, text string, cmdLen int) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func TestDecodeCommand(t *testing.T) {
	ev, ok := Decode(tgbotapi.Update{Message: commandMessage(5, 5, "/NewCourse  React Basics ", 10)})
	require.True(t, ok)

	cmd, isCmd := ev.(Command)
	require.True(t, isCmd)
	assert.Equal(t, "newcourse", cmd.Name)
	assert.Equal(t, "React Basics", cmd.Args)
	assert.Equal(t, int64(5), cmd.ShardKey())
	assert.Equal(t, "command", cmd.Kind())
}

func TestDecodeStartWithPayload(t *testing.T) {
	ev, ok := Decode(tgbotapi.Update{Message: commandMessage(5, 5, "/start abc-123", 6)})
	require.True(t, ok)
	assert.Equal(t, Command{ChatID: 5, UserID: 5, Name: "start", Args: "abc-123"}, ev)
}

func TestDecodeText(t *testing.T) {
	ev, ok := Decode(tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 9},
		Chat: &tgbotapi.Chat{ID: 9},
		Text: "  react  ",
	}})
	require.True(t, ok)
	assert.Equal(t, TextMessage{ChatID: 9, UserID: 9, Text: "react"}, ev)

	_, ok = Decode(tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 9},
		Chat: &tgbotapi.Chat{ID: 9},
	}})
	assert.False(t, ok, "a message without text is ignored")
}

func TestDecodeJoinRequest(t *testing.T) {
	ev, ok := Decode(tgbotapi.Update{ChatJoinRequest: &tgbotapi.ChatJoinRequest{
		Chat: tgbotapi.Chat{ID: -100123},
		From: tgbotapi.User{ID: 42},
	}})
	require.True(t, ok)
	assert.Equal(t, JoinRequest{ChatID: -100123, UserID: 42}, ev)
	assert.Equal(t, int64(42), ev.ShardKey())
}

func TestDecodeChannelPost(t *testing.T) {
	tests := []struct {
		name string
		msg  *tgbotapi.Message
		want ChannelPost
	}{
		{
			name: "document",
			msg: &tgbotapi.Message{
				MessageID: 77,
				Chat:      &tgbotapi.Chat{ID: -100999},
				Caption:   "Lesson 1",
				Document:  &tgbotapi.Document{FileName: "lesson1.pdf"},
			},
			want: ChannelPost{ChatID: -100999, MessageID: 77, Caption: "Lesson 1", FileName: "lesson1.pdf", HasMedia: true},
		},
		{
			name: "video",
			msg: &tgbotapi.Message{
				MessageID: 78,
				Chat:      &tgbotapi.Chat{ID: -100999},
				Video:     &tgbotapi.Video{FileName: "intro.mp4"},
			},
			want: ChannelPost{ChatID: -100999, MessageID: 78, FileName: "intro.mp4", HasMedia: true},
		},
		{
			name: "text only",
			msg: &tgbotapi.Message{
				MessageID: 79,
				Chat:      &tgbotapi.Chat{ID: -100999},
				Text:      "announcement",
			},
			want: ChannelPost{ChatID: -100999, MessageID: 79},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := Decode(tgbotapi.Update{ChannelPost: tt.msg})
			require.True(t, ok)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestDecodeCallback(t *testing.T) {
	ev, ok := Decode(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 3},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 3}},
		Data:    "view|abc",
	}})
	require.True(t, ok)
	assert.Equal(t, CallbackQuery{ID: "cb1", ChatID: 3, UserID: 3, Data: "view|abc"}, ev)

	_, ok = Decode(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "cb2"}})
	assert.False(t, ok)
}

func TestDecodeIgnoresUnknown(t *testing.T) {
	_, ok := Decode(tgbotapi.Update{UpdateID: 1})
	assert.False(t, ok)
}

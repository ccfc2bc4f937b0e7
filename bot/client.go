package bot

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Keyboard is a rendered inline keyboard: rows of buttons.
type Keyboard [][]Button

type Button struct {
	Text string
	Data string
	URL  string
}

// Message is an outbound text message.
type Message struct {
	ChatID   int64
	Text     string
	Markdown bool
	Keyboard Keyboard
}

// Transport is the subset of the Telegram Bot API the bot uses.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int, caption string) error
	MemberStatus(ctx context.Context, chatID, userID int64) (string, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
	Username() string
}

// Client wraps a BotAPI with an outbound rate limit. Every call honours the
// context deadline even though the underlying library does not take one.
type Client struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

func NewClient(token string, sendRate float64) (*Client, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("init bot api: %w", err)
	}

	burst := int(sendRate)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(sendRate), burst),
	}, nil
}

func (c *Client) Username() string { return c.api.Self.UserName }

// call runs fn after the limiter admits it, returning early if ctx ends first.
// fn keeps running in the background in that case; its result is discarded.
func (c *Client) call(ctx context.Context, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Send(ctx context.Context, msg Message) error {
	cfg := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	cfg.DisableWebPagePreview = true
	if msg.Markdown {
		cfg.ParseMode = tgbotapi.ModeMarkdown
	}
	if len(msg.Keyboard) > 0 {
		cfg.ReplyMarkup = inlineKeyboard(msg.Keyboard)
	}
	return c.call(ctx, func() error {
		_, err := c.api.Send(cfg)
		return err
	})
}

func (c *Client) CopyMessage(ctx context.Context, toChatID, fromChatID int64, messageID int, caption string) error {
	cfg := tgbotapi.NewCopyMessage(toChatID, fromChatID, messageID)
	cfg.Caption = caption
	return c.call(ctx, func() error {
		_, err := c.api.CopyMessage(cfg)
		return err
	})
}

func (c *Client) MemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	cfg := tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	}
	var status string
	err := c.call(ctx, func() error {
		member, err := c.api.GetChatMember(cfg)
		if err != nil {
			return err
		}
		status = member.Status
		return nil
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	cfg := tgbotapi.NewCallback(callbackID, text)
	return c.call(ctx, func() error {
		_, err := c.api.Request(cfg)
		return err
	})
}

// Updates starts long polling. Stop with StopPolling.
func (c *Client) Updates(timeoutSeconds int) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSeconds
	u.AllowedUpdates = AllowedUpdates
	return c.api.GetUpdatesChan(u)
}

func (c *Client) StopPolling() {
	c.api.StopReceivingUpdates()
}

// AllowedUpdates are the update kinds the bot subscribes to.
var AllowedUpdates = []string{"message", "channel_post", "callback_query", "chat_join_request"}

func inlineKeyboard(kb Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

package controllers

import (
	"context"
	"errors"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"telegram-library/bot"
	"telegram-library/configs"
	"telegram-library/models"
	"telegram-library/services"
	"telegram-library/store"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const eventTimeout = 30 * time.Second

var adminCommands = map[string]bool{
	"newcourse": true,
	"finish":    true,
	"addlock":   true,
	"logs":      true,
}

// Dispatcher routes decoded events to the services and replies to the user.
// Nothing raised while handling one event escapes Handle.
type Dispatcher struct {
	transport      bot.Transport
	gate           *services.Gate
	registry       *services.Registry
	ingestor       *services.Ingestor
	searcher       *services.Searcher
	audit          *services.Audit
	courses        store.CourseStore
	users          store.UserStore
	adminID        int64
	vaultChannelID int64
	log            zerolog.Logger
}

type DispatcherDeps struct {
	Transport      bot.Transport
	Gate           *services.Gate
	Registry       *services.Registry
	Ingestor       *services.Ingestor
	Searcher       *services.Searcher
	Audit          *services.Audit
	Courses        store.CourseStore
	Users          store.UserStore
	AdminID        int64
	VaultChannelID int64
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	return &Dispatcher{
		transport:      deps.Transport,
		gate:           deps.Gate,
		registry:       deps.Registry,
		ingestor:       deps.Ingestor,
		searcher:       deps.Searcher,
		audit:          deps.Audit,
		courses:        deps.Courses,
		users:          deps.Users,
		adminID:        deps.AdminID,
		vaultChannelID: deps.VaultChannelID,
		log:            configs.Logger("dispatcher"),
	}
}

// authorized is the single admin check applied before any admin command.
func (d *Dispatcher) authorized(userID int64) bool {
	return userID == d.adminID
}

func (d *Dispatcher) Handle(ctx context.Context, ev bot.Event) {
	ctx, cancel := context.WithTimeout(ctx, eventTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			handlerPanicsTotal.Inc()
			d.log.Error().
				Interface("panic", r).
				Str("kind", ev.Kind()).
				Str("stack", string(debug.Stack())).
				Msg("Event handler panicked")
		}
	}()

	updatesTotal.WithLabelValues(ev.Kind()).Inc()

	switch e := ev.(type) {
	case bot.JoinRequest:
		d.onJoinRequest(ctx, e)
	case bot.Command:
		d.onCommand(ctx, e)
	case bot.ChannelPost:
		d.onChannelPost(ctx, e)
	case bot.TextMessage:
		d.onText(ctx, e)
	case bot.CallbackQuery:
		d.onCallback(ctx, e)
	default:
		d.log.Debug().Str("kind", ev.Kind()).Msg("Ignoring event")
	}
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	d.send(ctx, bot.Message{ChatID: chatID, Text: text})
}

func (d *Dispatcher) send(ctx context.Context, msg bot.Message) {
	if err := d.transport.Send(ctx, msg); err != nil {
		d.log.Error().Err(err).Int64("chat_id", msg.ChatID).Msg("Failed to send message")
	}
}

func (d *Dispatcher) onJoinRequest(ctx context.Context, e bot.JoinRequest) {
	if err := d.users.MarkJoinRequested(ctx, e.UserID, time.Now().UTC()); err != nil {
		d.log.Error().Err(err).Int64("user_id", e.UserID).Msg("Failed to record join request")
		return
	}
	d.audit.Record(ctx, "join_request_detected", e.UserID, map[string]string{"chat": strconv.FormatInt(e.ChatID, 10)})

	// The user may not have started the bot yet; a failed DM is expected.
	if err := d.transport.Send(ctx, bot.Message{ChatID: e.UserID, Text: msgJoinReceived}); err != nil {
		d.log.Debug().Err(err).Int64("user_id", e.UserID).Msg("Join request DM not delivered")
	}
}

func (d *Dispatcher) onCommand(ctx context.Context, e bot.Command) {
	if adminCommands[e.Name] {
		if !d.authorized(e.UserID) {
			d.log.Debug().Int64("user_id", e.UserID).Str("command", e.Name).Msg("Dropping admin command from non-admin")
			return
		}
		d.onAdminCommand(ctx, e)
		return
	}

	switch e.Name {
	case "start":
		d.onStart(ctx, e)
	default:
		d.log.Debug().Str("command", e.Name).Msg("Unknown command")
	}
}

func (d *Dispatcher) onAdminCommand(ctx context.Context, e bot.Command) {
	switch e.Name {
	case "newcourse":
		course, err := d.ingestor.OpenCourse(ctx, e.UserID, e.Args)
		if err != nil {
			d.replyError(ctx, e.ChatID, "newcourse", err)
			return
		}
		d.reply(ctx, e.ChatID, courseOpenedText(course.Title))

	case "finish":
		res, err := d.ingestor.Finish(ctx, e.UserID)
		if errors.Is(err, services.ErrNothingToFinish) {
			d.reply(ctx, e.ChatID, msgNothingToFinish)
			return
		}
		if err != nil {
			d.replyError(ctx, e.ChatID, "finish", err)
			return
		}
		d.reply(ctx, e.ChatID, finishText(res))

	case "addlock":
		channelID, err := d.gate.SetLockChannel(ctx, e.UserID, e.Args)
		if err != nil {
			d.replyError(ctx, e.ChatID, "addlock", err)
			return
		}
		d.reply(ctx, e.ChatID, lockSetText(channelID))

	case "logs":
		entries, err := d.audit.Recent(ctx)
		if err != nil {
			d.replyError(ctx, e.ChatID, "logs", err)
			return
		}
		d.reply(ctx, e.ChatID, logsText(entries))
	}
}

// replyError reports validation problems with usage text and everything else
// with a generic message.
func (d *Dispatcher) replyError(ctx context.Context, chatID int64, op string, err error) {
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		d.reply(ctx, chatID, "Usage: "+verr.Usage)
		return
	}
	d.log.Error().Err(err).Str("op", op).Msg("Operation failed")
	d.reply(ctx, chatID, msgGenericFailure)
}

// admit runs the access gate and tells the user why they were turned away.
func (d *Dispatcher) admit(ctx context.Context, chatID, userID int64) bool {
	err := d.gate.CheckAccess(ctx, userID)
	if err == nil {
		return true
	}
	var denied *services.DeniedError
	if errors.As(err, &denied) {
		d.reply(ctx, chatID, deniedText(denied.Reason))
	} else {
		d.log.Error().Err(err).Int64("user_id", userID).Msg("Access check failed")
		d.reply(ctx, chatID, msgGenericFailure)
	}
	return false
}

func (d *Dispatcher) onStart(ctx context.Context, e bot.Command) {
	if !d.admit(ctx, e.ChatID, e.UserID) {
		return
	}
	token := strings.Fields(e.Args)
	if len(token) == 0 {
		d.send(ctx, bot.Message{ChatID: e.ChatID, Text: msgWelcome, Markdown: true})
		return
	}
	d.deliver(ctx, e.ChatID, e.UserID, token[0])
}

func (d *Dispatcher) deliver(ctx context.Context, chatID, userID int64, token string) {
	d.audit.Record(ctx, "file_request", userID, map[string]string{"token": token})

	file, err := d.registry.ResolveToken(ctx, token)
	if errors.Is(err, services.ErrNotFound) {
		d.audit.Record(ctx, "invalid_token", userID, map[string]string{"token": token})
		d.reply(ctx, chatID, msgInvalidToken)
		return
	}
	if err != nil {
		d.log.Error().Err(err).Msg("Token resolution failed")
		d.reply(ctx, chatID, msgGenericFailure)
		return
	}

	// Files go to the user's private chat, never to the chat the command came from.
	if err := d.transport.CopyMessage(ctx, userID, d.vaultChannelID, file.SourceMessageID, file.Caption); err != nil {
		terr := &services.TransportError{Op: "copyMessage", Err: err}
		d.log.Error().Err(terr).Int64("user_id", userID).Msg("File delivery failed")
		d.audit.Record(ctx, "delivery_failed", userID, map[string]string{"file": file.DisplayName, "error": err.Error()})
		d.reply(ctx, chatID, msgDeliveryFailed)
		return
	}
	d.audit.Record(ctx, "file_delivered", userID, map[string]string{"file": file.DisplayName})
}

func (d *Dispatcher) onChannelPost(ctx context.Context, e bot.ChannelPost) {
	file, err := d.ingestor.Ingest(ctx, e)
	if err != nil {
		d.log.Error().Err(err).Int("message_id", e.MessageID).Msg("Failed to index vault post")
		return
	}
	if file != nil {
		d.log.Info().Str("name", file.DisplayName).Int("message_id", e.MessageID).Msg("Indexed vault post")
	}
}

func (d *Dispatcher) onText(ctx context.Context, e bot.TextMessage) {
	// Search only in private chats, where the chat id is the user id.
	if e.ChatID != e.UserID {
		return
	}
	if !d.admit(ctx, e.ChatID, e.UserID) {
		return
	}

	results, err := d.searcher.Search(ctx, e.UserID, e.Text)
	if err != nil {
		d.log.Error().Err(err).Msg("Search failed")
		d.reply(ctx, e.ChatID, msgGenericFailure)
		return
	}
	if len(results) == 0 {
		d.reply(ctx, e.ChatID, msgNoResults)
		return
	}
	d.send(ctx, searchResultsMessage(e.ChatID, results))
}

func (d *Dispatcher) onCallback(ctx context.Context, e bot.CallbackQuery) {
	answer := ""
	defer func() {
		if err := d.transport.AnswerCallback(ctx, e.ID, answer); err != nil {
			d.log.Debug().Err(err).Msg("Failed to answer callback")
		}
	}()

	cb, ok := parseCallback(e.Data)
	if !ok {
		answer = msgStaleButton
		return
	}
	if !d.admit(ctx, e.ChatID, e.UserID) {
		return
	}

	course, err := d.courses.GetCourse(ctx, cb.CourseID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && course.Status != models.CourseLive) {
		answer = msgCourseGone
		return
	}
	if err != nil {
		d.log.Error().Err(err).Msg("Failed to load course")
		answer = msgGenericFailure
		return
	}

	d.send(ctx, coursePageMessage(e.ChatID, course, cb.Page, d.transport.Username()))
}

type callback struct {
	Action   string
	CourseID primitive.ObjectID
	Page     int
}

// parseCallback decodes "view|<id>" and "page|<id>|<n>".
func parseCallback(data string) (callback, bool) {
	parts := strings.Split(data, "|")
	if len(parts) < 2 {
		return callback{}, false
	}
	id, err := primitive.ObjectIDFromHex(parts[1])
	if err != nil {
		return callback{}, false
	}
	cb := callback{Action: parts[0], CourseID: id}

	switch {
	case cb.Action == "view" && len(parts) == 2:
		return cb, true
	case cb.Action == "page" && len(parts) == 3:
		page, err := strconv.Atoi(parts[2])
		if err != nil {
			return callback{}, false
		}
		cb.Page = page
		return cb, true
	}
	return callback{}, false
}

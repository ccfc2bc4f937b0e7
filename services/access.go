package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"telegram-library/configs"
	"telegram-library/store"

	"github.com/rs/zerolog"
)

// MembershipChecker reads a user's live status in a chat.
type MembershipChecker interface {
	MemberStatus(ctx context.Context, chatID, userID int64) (string, error)
}

var memberStatuses = map[string]bool{
	"member":        true,
	"administrator": true,
	"creator":       true,
}

// Gate decides whether gated content may be served to a user. A join request
// is required first; live membership is then re-checked on every call.
type Gate struct {
	settings store.SettingsStore
	users    store.UserStore
	members  MembershipChecker
	audit    *Audit
	timeout  time.Duration
	log      zerolog.Logger
}

func NewGate(settings store.SettingsStore, users store.UserStore, members MembershipChecker, audit *Audit, timeout time.Duration) *Gate {
	return &Gate{
		settings: settings,
		users:    users,
		members:  members,
		audit:    audit,
		timeout:  timeout,
		log:      configs.Logger("access"),
	}
}

// CheckAccess returns nil when the user is allowed and a *DeniedError
// otherwise. It never fails open.
func (g *Gate) CheckAccess(ctx context.Context, userID int64) error {
	cfg, err := g.settings.GetAccessConfig(ctx)
	if err != nil {
		g.log.Error().Err(err).Int64("user_id", userID).Msg("Failed to read access config")
		return g.deny(ctx, userID, DenyQueryError, 0, err)
	}
	if !cfg.Locked() {
		return nil
	}

	user, err := g.users.GetUser(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return g.deny(ctx, userID, DenyNoJoinRequest, cfg.LockChannelID, nil)
	case err != nil:
		return g.deny(ctx, userID, DenyQueryError, cfg.LockChannelID, err)
	case !user.RequestedJoin:
		return g.deny(ctx, userID, DenyNoJoinRequest, cfg.LockChannelID, nil)
	}

	checkCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	status, err := g.members.MemberStatus(checkCtx, cfg.LockChannelID, userID)
	if err != nil {
		return g.deny(ctx, userID, DenyQueryError, cfg.LockChannelID, &TransportError{Op: "getChatMember", Err: err})
	}
	if !memberStatuses[status] {
		return g.deny(ctx, userID, DenyNotMember, cfg.LockChannelID, nil)
	}
	return nil
}

func (g *Gate) deny(ctx context.Context, userID int64, reason DenyReason, lockChannelID int64, cause error) error {
	accessDeniedTotal.WithLabelValues(string(reason)).Inc()

	detail := map[string]string{"reason": string(reason)}
	if lockChannelID != 0 {
		detail["channel"] = strconv.FormatInt(lockChannelID, 10)
	}
	if cause != nil {
		detail["error"] = cause.Error()
	}
	g.audit.Record(ctx, "access_denied", userID, detail)

	return &DeniedError{Reason: reason, LockChannelID: lockChannelID}
}

// SetLockChannel configures the channel whose membership gates access.
func (g *Gate) SetLockChannel(ctx context.Context, adminID int64, args string) (int64, error) {
	usage := &ValidationError{Command: "addlock", Usage: "/addlock -100xxxxxxxxxx"}
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return 0, usage
	}
	channelID, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || channelID == 0 {
		return 0, usage
	}
	if err := g.settings.SetLockChannel(ctx, channelID); err != nil {
		return 0, fmt.Errorf("set lock channel: %w", err)
	}
	g.audit.Record(ctx, "lock_channel_added", adminID, map[string]string{"channel": fields[0]})
	return channelID, nil
}

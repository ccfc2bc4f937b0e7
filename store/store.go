// Package store persists courses, users, the admin session register, the
// access configuration and the audit log.
package store

import (
	"context"
	"errors"
	"time"

	"telegram-library/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrNotFound = errors.New("not found")

type CourseStore interface {
	// CreateCourse inserts a draft course with no files.
	CreateCourse(ctx context.Context, title string) (*models.Course, error)
	GetCourse(ctx context.Context, id primitive.ObjectID) (*models.Course, error)
	// AppendFile pushes file onto the course only while its status is open.
	// It returns false when no open course matched.
	AppendFile(ctx context.Context, id primitive.ObjectID, file models.File) (bool, error)
	// SetStatus moves the course to status `to` only if its current status
	// is one of `from`.
	SetStatus(ctx context.Context, id primitive.ObjectID, from []models.CourseStatus, to models.CourseStatus) (bool, error)
	// DeleteIfEmpty removes an open course that still has no files.
	DeleteIfEmpty(ctx context.Context, id primitive.ObjectID) (bool, error)
	// FindByToken returns every course holding a file with token, in
	// insertion order.
	FindByToken(ctx context.Context, token string) ([]models.Course, error)
	// ListLive returns all live courses in insertion order.
	ListLive(ctx context.Context) ([]models.Course, error)
}

type SettingsStore interface {
	// GetSession returns the idle zero session (version 0) when none exists.
	GetSession(ctx context.Context) (models.AdminSession, error)
	// SwapSession writes next only if the stored version equals expected.
	// next.Version is set to expected+1 by the store.
	SwapSession(ctx context.Context, expected int64, next models.AdminSession) (bool, error)
	GetAccessConfig(ctx context.Context) (models.AccessConfig, error)
	SetLockChannel(ctx context.Context, channelID int64) error
}

type UserStore interface {
	MarkJoinRequested(ctx context.Context, userID int64, at time.Time) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}

type LogStore interface {
	AppendLog(ctx context.Context, entry models.LogEntry) error
	RecentLogs(ctx context.Context, limit int) ([]models.LogEntry, error)
}

// Store is the full persistence surface used by the bot.
type Store interface {
	CourseStore
	SettingsStore
	UserStore
	LogStore
	Ping(ctx context.Context) error
}

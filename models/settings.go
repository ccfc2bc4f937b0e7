package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionMode string

const (
	ModeIdle      SessionMode = "idle"
	ModeUploading SessionMode = "uploading"
)

// AdminSession is the singleton ingestion register. Version increases on
// every successful transition and guards compare-and-swap updates.
type AdminSession struct {
	Mode      SessionMode        `bson:"mode" json:"mode"`
	CourseID  primitive.ObjectID `bson:"course_id,omitempty" json:"course_id,omitempty"`
	Version   int64              `bson:"version" json:"version"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

func (s AdminSession) Uploading() bool {
	return s.Mode == ModeUploading && !s.CourseID.IsZero()
}

type AccessConfig struct {
	LockChannelID int64     `bson:"lock_channel_id,omitempty" json:"lock_channel_id,omitempty"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updated_at"`
}

func (c AccessConfig) Locked() bool {
	return c.LockChannelID != 0
}

package models

import "time"

type User struct {
	UserID        int64     `bson:"user_id" json:"user_id"`
	RequestedJoin bool      `bson:"requested_join" json:"requested_join"`
	RequestedAt   time.Time `bson:"requested_at,omitempty" json:"requested_at,omitempty"`
}

// LogEntry is one append-only audit record.
type LogEntry struct {
	Event  string            `bson:"event" json:"event"`
	UserID int64             `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Detail map[string]string `bson:"extra,omitempty" json:"extra,omitempty"`
	Time   time.Time         `bson:"time" json:"time"`
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CourseStatus string

const (
	CourseDraft     CourseStatus = "draft"
	CourseUploading CourseStatus = "uploading"
	CourseLive      CourseStatus = "live"
)

// Open reports whether files may still be appended to a course in this status.
func (s CourseStatus) Open() bool {
	return s == CourseDraft || s == CourseUploading
}

type File struct {
	Token           string `bson:"token" json:"token"`
	SourceMessageID int    `bson:"msg_id" json:"msg_id"`
	DisplayName     string `bson:"name" json:"name"`
	Caption         string `bson:"caption" json:"caption"`
}

type Course struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Status    CourseStatus       `bson:"status" json:"status"`
	Files     []File             `bson:"files" json:"files"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// FileByToken returns the first file in the course carrying token.
func (c *Course) FileByToken(token string) (File, bool) {
	for _, f := range c.Files {
		if f.Token == token {
			return f, true
		}
	}
	return File{}, false
}

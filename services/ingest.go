package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"telegram-library/bot"
	"telegram-library/configs"
	"telegram-library/models"
	"telegram-library/store"

	"github.com/rs/zerolog"
)

const (
	sessionAttempts = 5
	placeholderName = "File"
)

// FinishResult describes what finish did with the active course.
type FinishResult struct {
	Title     string
	Files     int
	Discarded bool
}

// Ingestor is the admin upload state machine: Idle, or Uploading into one
// course. Every transition is a compare-and-swap on the session document.
type Ingestor struct {
	courses        store.CourseStore
	settings       store.SettingsStore
	registry       *Registry
	audit          *Audit
	vaultChannelID int64
	log            zerolog.Logger
}

func NewIngestor(courses store.CourseStore, settings store.SettingsStore, registry *Registry, audit *Audit, vaultChannelID int64) *Ingestor {
	return &Ingestor{
		courses:        courses,
		settings:       settings,
		registry:       registry,
		audit:          audit,
		vaultChannelID: vaultChannelID,
		log:            configs.Logger("ingest"),
	}
}

// OpenCourse creates a course and points the session at it. The course is
// written before the session, so a crash in between leaves an orphan draft
// rather than a session pointing nowhere.
func (s *Ingestor) OpenCourse(ctx context.Context, adminID int64, title string) (*models.Course, error) {
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return nil, &ValidationError{Command: "newcourse", Usage: "/newcourse <course title>"}
	}

	course, err := s.courses.CreateCourse(ctx, title)
	if err != nil {
		return nil, err
	}

	var previous models.AdminSession
	swapped := false
	for attempt := 0; attempt < sessionAttempts && !swapped; attempt++ {
		previous, err = s.settings.GetSession(ctx)
		if err != nil {
			return nil, err
		}
		next := models.AdminSession{Mode: models.ModeUploading, CourseID: course.ID}
		if swapped, err = s.settings.SwapSession(ctx, previous.Version, next); err != nil {
			return nil, err
		}
	}
	if !swapped {
		s.log.Error().Str("course_id", course.ID.Hex()).Msg("Could not claim session, course left as orphan draft")
		return nil, ErrContention
	}

	if previous.Uploading() {
		s.log.Warn().
			Str("abandoned_course_id", previous.CourseID.Hex()).
			Str("course_id", course.ID.Hex()).
			Msg("Opened a course while another was still uploading")
	}

	if _, err := s.courses.SetStatus(ctx, course.ID, []models.CourseStatus{models.CourseDraft}, models.CourseUploading); err != nil {
		return nil, err
	}
	course.Status = models.CourseUploading

	s.audit.Record(ctx, "new_course", adminID, map[string]string{"title": title, "course_id": course.ID.Hex()})
	return course, nil
}

// Ingest indexes a vault post into the active course. Posts from another
// chat, posts without media, and posts arriving while idle return nil, nil.
func (s *Ingestor) Ingest(ctx context.Context, post bot.ChannelPost) (*models.File, error) {
	if post.ChatID != s.vaultChannelID || !post.HasMedia {
		return nil, nil
	}

	session, err := s.settings.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if !session.Uploading() {
		return nil, nil
	}

	name := s.displayName(post)
	file, err := s.registry.IssueFile(ctx, session.CourseID, post.MessageID, post.Caption, name)
	if errors.Is(err, ErrNotAccepting) {
		postsRejectedTotal.Inc()
		s.log.Warn().
			Int("message_id", post.MessageID).
			Str("course_id", session.CourseID.Hex()).
			Msg("Course closed before the post was indexed, dropping it")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	filesIndexedTotal.Inc()
	s.audit.Record(ctx, "file_indexed", 0, map[string]string{
		"name":       file.DisplayName,
		"course_id":  session.CourseID.Hex(),
		"message_id": strconv.Itoa(post.MessageID),
	})
	return file, nil
}

// displayName prefers the attachment's file name, then the first clean
// caption line.
func (s *Ingestor) displayName(post bot.ChannelPost) string {
	if name := strings.TrimSpace(post.FileName); name != "" {
		return name
	}
	if post.Caption != "" {
		title, _, _ := strings.Cut(s.registry.sanitizer.Sanitize(post.Caption, ""), "\n")
		if title != "" {
			return title
		}
	}
	return placeholderName
}

// Finish closes the upload window. An empty course is deleted, anything
// else goes live. Idle sessions yield ErrNothingToFinish.
func (s *Ingestor) Finish(ctx context.Context, adminID int64) (*FinishResult, error) {
	var session models.AdminSession
	swapped := false
	for attempt := 0; attempt < sessionAttempts && !swapped; attempt++ {
		var err error
		session, err = s.settings.GetSession(ctx)
		if err != nil {
			return nil, err
		}
		if !session.Uploading() {
			return nil, ErrNothingToFinish
		}
		if swapped, err = s.settings.SwapSession(ctx, session.Version, models.AdminSession{Mode: models.ModeIdle}); err != nil {
			return nil, err
		}
	}
	if !swapped {
		return nil, ErrContention
	}

	id := session.CourseID
	course, err := s.courses.GetCourse(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Warn().Str("course_id", id.Hex()).Msg("Session pointed at a missing course")
		return nil, ErrNothingToFinish
	}
	if err != nil {
		return nil, err
	}

	deleted, err := s.courses.DeleteIfEmpty(ctx, id)
	if err != nil {
		return nil, err
	}
	if deleted {
		s.audit.Record(ctx, "discard_empty_course", adminID, map[string]string{"title": course.Title, "course_id": id.Hex()})
		return &FinishResult{Title: course.Title, Discarded: true}, nil
	}

	open := []models.CourseStatus{models.CourseDraft, models.CourseUploading}
	if _, err := s.courses.SetStatus(ctx, id, open, models.CourseLive); err != nil {
		return nil, err
	}

	// Re-read: files may have landed between the first read and publication.
	if published, err := s.courses.GetCourse(ctx, id); err == nil {
		course = published
	}

	s.audit.Record(ctx, "finish_upload", adminID, map[string]string{
		"title":     course.Title,
		"course_id": id.Hex(),
		"files":     strconv.Itoa(len(course.Files)),
	})
	return &FinishResult{Title: course.Title, Files: len(course.Files)}, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-library/configs"
	"telegram-library/models"
	"telegram-library/store"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxDisplayName = 50
	tokenAttempts  = 3
	tokenCacheSize = 4096
	tokenCacheTTL  = 30 * time.Minute
)

// Registry issues file tokens and resolves them back to files. Files are
// immutable once issued, so resolutions are cached.
type Registry struct {
	courses   store.CourseStore
	sanitizer *Sanitizer
	cache     *expirable.LRU[string, models.File]
	newToken  func() string
	log       zerolog.Logger
}

func NewRegistry(courses store.CourseStore, sanitizer *Sanitizer) *Registry {
	return &Registry{
		courses:   courses,
		sanitizer: sanitizer,
		cache:     expirable.NewLRU[string, models.File](tokenCacheSize, nil, tokenCacheTTL),
		newToken:  uuid.NewString,
		log:       configs.Logger("registry"),
	}
}

func (r *Registry) uniqueToken(ctx context.Context) (string, error) {
	for i := 0; i < tokenAttempts; i++ {
		token := r.newToken()
		existing, err := r.courses.FindByToken(ctx, token)
		if err != nil {
			return "", fmt.Errorf("check token: %w", err)
		}
		if len(existing) == 0 {
			return token, nil
		}
		r.log.Warn().Str("token", token).Msg("Generated token already in use, retrying")
	}
	return "", fmt.Errorf("no unique token after %d attempts", tokenAttempts)
}

// IssueFile appends a new file to an open course. It is the only path that
// creates files. ErrNotAccepting means the course closed in the meantime.
func (r *Registry) IssueFile(ctx context.Context, courseID primitive.ObjectID, sourceMessageID int, rawCaption, derivedName string) (*models.File, error) {
	token, err := r.uniqueToken(ctx)
	if err != nil {
		return nil, err
	}

	name := truncateRunes(derivedName, MaxDisplayName)
	file := models.File{
		Token:           token,
		SourceMessageID: sourceMessageID,
		DisplayName:     name,
		Caption:         r.sanitizer.Caption(rawCaption, name),
	}

	ok, err := r.courses.AppendFile(ctx, courseID, file)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAccepting
	}
	return &file, nil
}

// ResolveToken finds the file carrying token. Should the store ever hold the
// token twice, the first file in course then file order wins.
func (r *Registry) ResolveToken(ctx context.Context, token string) (*models.File, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	if file, ok := r.cache.Get(token); ok {
		return &file, nil
	}

	courses, err := r.courses.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve token: %w", err)
	}

	var (
		found   *models.File
		matches int
	)
	for _, course := range courses {
		for _, f := range course.Files {
			if f.Token != token {
				continue
			}
			matches++
			if found == nil {
				f := f
				found = &f
			}
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	if matches > 1 {
		duplicateTokensTotal.Inc()
		r.log.Error().Str("token", token).Int("matches", matches).Msg("Token resolves to more than one file")
	}

	r.cache.Add(token, *found)
	return found, nil
}

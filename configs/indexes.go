package configs

import (
	"context"
	"fmt"
	"time"

	"telegram-library/store"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SetupIndexes creates the indexes the bot queries rely on.
func SetupIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	byCollection := map[string][]mongo.IndexModel{
		store.CoursesCollection: {
			{
				// Multikey unique: no two courses may share a file token.
				Keys: bson.D{{Key: "files.token", Value: 1}},
				Options: options.Index().
					SetName("idx_files_token").
					SetUnique(true).
					SetPartialFilterExpression(bson.D{{Key: "files.token", Value: bson.D{{Key: "$exists", Value: true}}}}),
			},
			{
				Keys:    bson.D{{Key: "status", Value: 1}, {Key: "_id", Value: 1}},
				Options: options.Index().SetName("idx_status_id"),
			},
		},
		store.UsersCollection: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetName("idx_user_id").SetUnique(true),
			},
		},
		store.LogsCollection: {
			{
				Keys:    bson.D{{Key: "time", Value: -1}},
				Options: options.Index().SetName("idx_time_desc"),
			},
		},
	}

	for name, indexes := range byCollection {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}

	log.Info().Msg("MongoDB indexes created")
	return nil
}

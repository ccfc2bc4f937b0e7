package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-library/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CoursesCollection  = "courses"
	UsersCollection    = "users"
	SettingsCollection = "settings"
	LogsCollection     = "logs"

	sessionDocID = "admin_state"
	configDocID  = "config"
)

type Mongo struct {
	db  *mongo.Database
	now func() time.Time
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{db: db, now: time.Now}
}

func (m *Mongo) courses() *mongo.Collection  { return m.db.Collection(CoursesCollection) }
func (m *Mongo) users() *mongo.Collection    { return m.db.Collection(UsersCollection) }
func (m *Mongo) settings() *mongo.Collection { return m.db.Collection(SettingsCollection) }
func (m *Mongo) logs() *mongo.Collection     { return m.db.Collection(LogsCollection) }

func (m *Mongo) Ping(ctx context.Context) error {
	return m.db.Client().Ping(ctx, nil)
}

func (m *Mongo) CreateCourse(ctx context.Context, title string) (*models.Course, error) {
	now := m.now()
	course := models.Course{
		ID:        primitive.NewObjectID(),
		Title:     title,
		Status:    models.CourseDraft,
		Files:     []models.File{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := m.courses().InsertOne(ctx, course); err != nil {
		return nil, fmt.Errorf("insert course: %w", err)
	}
	return &course, nil
}

func (m *Mongo) GetCourse(ctx context.Context, id primitive.ObjectID) (*models.Course, error) {
	var course models.Course
	if err := m.courses().FindOne(ctx, bson.M{"_id": id}).Decode(&course); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &course, nil
}

func openStatuses() bson.M {
	return bson.M{"$in": []models.CourseStatus{models.CourseDraft, models.CourseUploading}}
}

func (m *Mongo) AppendFile(ctx context.Context, id primitive.ObjectID, file models.File) (bool, error) {
	filter := bson.M{"_id": id, "status": openStatuses()}
	update := bson.M{
		"$push": bson.M{"files": file},
		"$set":  bson.M{"updated_at": m.now()},
	}
	res, err := m.courses().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("append file: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (m *Mongo) SetStatus(ctx context.Context, id primitive.ObjectID, from []models.CourseStatus, to models.CourseStatus) (bool, error) {
	filter := bson.M{"_id": id, "status": bson.M{"$in": from}}
	update := bson.M{"$set": bson.M{"status": to, "updated_at": m.now()}}
	res, err := m.courses().UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("set course status: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (m *Mongo) DeleteIfEmpty(ctx context.Context, id primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, "status": openStatuses(), "files": bson.M{"$size": 0}}
	res, err := m.courses().DeleteOne(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("delete empty course: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (m *Mongo) FindByToken(ctx context.Context, token string) ([]models.Course, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := m.courses().Find(ctx, bson.M{"files.token": token}, opts)
	if err != nil {
		return nil, fmt.Errorf("find by token: %w", err)
	}
	defer cursor.Close(ctx)

	var courses []models.Course
	if err = cursor.All(ctx, &courses); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	return courses, nil
}

func (m *Mongo) ListLive(ctx context.Context) ([]models.Course, error) {
	// Titles and ids are enough for ranking; files are loaded on view.
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"files": 0})
	cursor, err := m.courses().Find(ctx, bson.M{"status": models.CourseLive}, opts)
	if err != nil {
		return nil, fmt.Errorf("list live courses: %w", err)
	}
	defer cursor.Close(ctx)

	var courses []models.Course
	if err = cursor.All(ctx, &courses); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	return courses, nil
}

func (m *Mongo) GetSession(ctx context.Context) (models.AdminSession, error) {
	var session models.AdminSession
	err := m.settings().FindOne(ctx, bson.M{"_id": sessionDocID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.AdminSession{Mode: models.ModeIdle}, nil
	}
	if err != nil {
		return models.AdminSession{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// SwapSession upserts on the expected version. When the document exists with
// another version the upsert collides on _id, which counts as a lost race.
func (m *Mongo) SwapSession(ctx context.Context, expected int64, next models.AdminSession) (bool, error) {
	filter := bson.M{"_id": sessionDocID, "version": expected}
	if expected == 0 {
		// Documents written before versioning carry no version field.
		filter = bson.M{"_id": sessionDocID, "$or": bson.A{
			bson.M{"version": 0},
			bson.M{"version": bson.M{"$exists": false}},
		}}
	}
	set := bson.M{
		"mode":       next.Mode,
		"version":    expected + 1,
		"updated_at": m.now(),
	}
	update := bson.M{"$set": set}
	if next.CourseID.IsZero() {
		update["$unset"] = bson.M{"course_id": ""}
	} else {
		set["course_id"] = next.CourseID
	}

	res, err := m.settings().UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("swap session: %w", err)
	}
	return res.MatchedCount > 0 || res.UpsertedCount > 0, nil
}

func (m *Mongo) GetAccessConfig(ctx context.Context) (models.AccessConfig, error) {
	var cfg models.AccessConfig
	err := m.settings().FindOne(ctx, bson.M{"_id": configDocID}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.AccessConfig{}, nil
	}
	if err != nil {
		return models.AccessConfig{}, fmt.Errorf("get access config: %w", err)
	}
	return cfg, nil
}

func (m *Mongo) SetLockChannel(ctx context.Context, channelID int64) error {
	update := bson.M{"$set": bson.M{"lock_channel_id": channelID, "updated_at": m.now()}}
	_, err := m.settings().UpdateOne(ctx, bson.M{"_id": configDocID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set lock channel: %w", err)
	}
	return nil
}

func (m *Mongo) MarkJoinRequested(ctx context.Context, userID int64, at time.Time) error {
	update := bson.M{"$set": bson.M{"requested_join": true, "requested_at": at}}
	_, err := m.users().UpdateOne(ctx, bson.M{"user_id": userID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mark join request: %w", err)
	}
	return nil
}

func (m *Mongo) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	if err := m.users().FindOne(ctx, bson.M{"user_id": userID}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (m *Mongo) AppendLog(ctx context.Context, entry models.LogEntry) error {
	if _, err := m.logs().InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

func (m *Mongo) RecentLogs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "time", Value: -1}}).SetLimit(int64(limit))
	cursor, err := m.logs().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.LogEntry
	if err = cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode logs: %w", err)
	}
	return entries, nil
}

package store_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"telegram-library/configs"
	"telegram-library/models"
	"telegram-library/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// newMongoStore connects to MONGO_TEST_URL and returns a store over a
// throwaway database with indexes applied. Tests skip when the URL is unset.
func newMongoStore(t *testing.T) (*store.Mongo, *mongo.Database) {
	t.Helper()
	url := os.Getenv("MONGO_TEST_URL")
	if url == "" {
		t.Skip("MONGO_TEST_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database(fmt.Sprintf("library_test_%d", time.Now().UnixNano()))
	require.NoError(t, configs.SetupIndexes(db))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return store.NewMongo(db), db
}

func TestMongoSwapSession(t *testing.T) {
	st, _ := newMongoStore(t)
	ctx := context.Background()

	session, err := st.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), session.Version)

	course, err := st.CreateCourse(ctx, "Swap")
	require.NoError(t, err)

	ok, err := st.SwapSession(ctx, 0, models.AdminSession{Mode: models.ModeUploading, CourseID: course.ID})
	require.NoError(t, err)
	assert.True(t, ok)

	// The document now exists with version 1; a stale upsert collides on _id.
	ok, err = st.SwapSession(ctx, 0, models.AdminSession{Mode: models.ModeIdle})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = st.SwapSession(ctx, 1, models.AdminSession{Mode: models.ModeIdle})
	require.NoError(t, err)
	assert.True(t, ok)

	session, err = st.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.ModeIdle, session.Mode)
	assert.True(t, session.CourseID.IsZero())
	assert.Equal(t, int64(2), session.Version)
}

func TestMongoSwapSessionConcurrent(t *testing.T) {
	st, _ := newMongoStore(t)
	ctx := context.Background()

	const n = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := st.SwapSession(ctx, 0, models.AdminSession{Mode: models.ModeIdle})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMongoSwapSessionUnversionedDocument(t *testing.T) {
	st, db := newMongoStore(t)
	ctx := context.Background()

	_, err := db.Collection(store.SettingsCollection).InsertOne(ctx, bson.M{"_id": "admin_state", "mode": "idle"})
	require.NoError(t, err)

	ok, err := st.SwapSession(ctx, 0, models.AdminSession{Mode: models.ModeIdle})
	require.NoError(t, err)
	assert.True(t, ok)

	session, err := st.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), session.Version)
}

func TestMongoCourseGuards(t *testing.T) {
	st, _ := newMongoStore(t)
	ctx := context.Background()

	empty, err := st.CreateCourse(ctx, "Empty")
	require.NoError(t, err)
	full, err := st.CreateCourse(ctx, "Full")
	require.NoError(t, err)

	ok, err := st.AppendFile(ctx, full.ID, models.File{Token: "tok-1", SourceMessageID: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.DeleteIfEmpty(ctx, full.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = st.DeleteIfEmpty(ctx, empty.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = st.GetCourse(ctx, empty.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	ok, err = st.SetStatus(ctx, full.ID, []models.CourseStatus{models.CourseDraft}, models.CourseLive)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.AppendFile(ctx, full.ID, models.File{Token: "tok-2"})
	require.NoError(t, err)
	assert.False(t, ok, "live courses accept no files")

	live, err := st.ListLive(ctx)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Empty(t, live[0].Files)
}

func TestMongoTokenIndexRejectsDuplicates(t *testing.T) {
	st, _ := newMongoStore(t)
	ctx := context.Background()

	first, err := st.CreateCourse(ctx, "First")
	require.NoError(t, err)
	second, err := st.CreateCourse(ctx, "Second")
	require.NoError(t, err)

	_, err = st.AppendFile(ctx, first.ID, models.File{Token: "shared"})
	require.NoError(t, err)

	_, err = st.AppendFile(ctx, second.ID, models.File{Token: "shared"})
	require.Error(t, err)
	assert.True(t, mongo.IsDuplicateKeyError(err))

	found, err := st.FindByToken(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, first.ID, found[0].ID)
}

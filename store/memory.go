package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"telegram-library/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is a process-local Store. It keeps insertion order and applies
// every conditional update under one lock, matching the per-document
// atomicity the Mongo store relies on.
type Memory struct {
	mu      sync.Mutex
	courses []*models.Course
	users   map[int64]models.User
	session *models.AdminSession
	access  models.AccessConfig
	logs    []models.LogEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[int64]models.User),
		now:   time.Now,
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func copyCourse(c *models.Course) models.Course {
	out := *c
	out.Files = slices.Clone(c.Files)
	return out
}

func (m *Memory) find(id primitive.ObjectID) (int, *models.Course) {
	for i, c := range m.courses {
		if c.ID == id {
			return i, c
		}
	}
	return -1, nil
}

func (m *Memory) CreateCourse(_ context.Context, title string) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	course := &models.Course{
		ID:        primitive.NewObjectID(),
		Title:     title,
		Status:    models.CourseDraft,
		Files:     []models.File{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.courses = append(m.courses, course)
	out := copyCourse(course)
	return &out, nil
}

func (m *Memory) GetCourse(_ context.Context, id primitive.ObjectID) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, c := m.find(id)
	if c == nil {
		return nil, ErrNotFound
	}
	out := copyCourse(c)
	return &out, nil
}

func (m *Memory) AppendFile(_ context.Context, id primitive.ObjectID, file models.File) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, c := m.find(id)
	if c == nil || !c.Status.Open() {
		return false, nil
	}
	c.Files = append(c.Files, file)
	c.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) SetStatus(_ context.Context, id primitive.ObjectID, from []models.CourseStatus, to models.CourseStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, c := m.find(id)
	if c == nil || !slices.Contains(from, c.Status) {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) DeleteIfEmpty(_ context.Context, id primitive.ObjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, c := m.find(id)
	if c == nil || !c.Status.Open() || len(c.Files) > 0 {
		return false, nil
	}
	m.courses = slices.Delete(m.courses, i, i+1)
	return true, nil
}

func (m *Memory) FindByToken(_ context.Context, token string) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Course
	for _, c := range m.courses {
		if _, ok := c.FileByToken(token); ok {
			out = append(out, copyCourse(c))
		}
	}
	return out, nil
}

func (m *Memory) ListLive(context.Context) ([]models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Course
	for _, c := range m.courses {
		if c.Status == models.CourseLive {
			course := *c
			course.Files = nil
			out = append(out, course)
		}
	}
	return out, nil
}

// Insert stores a course as-is, keeping its id and files. Used to seed state.
func (m *Memory) Insert(course models.Course) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if course.ID.IsZero() {
		course.ID = primitive.NewObjectID()
	}
	c := copyCourse(&course)
	m.courses = append(m.courses, &c)
}

func (m *Memory) GetSession(context.Context) (models.AdminSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return models.AdminSession{Mode: models.ModeIdle}, nil
	}
	return *m.session, nil
}

func (m *Memory) SwapSession(_ context.Context, expected int64, next models.AdminSession) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current int64
	if m.session != nil {
		current = m.session.Version
	}
	if current != expected {
		return false, nil
	}
	next.Version = expected + 1
	next.UpdatedAt = m.now()
	m.session = &next
	return true, nil
}

func (m *Memory) GetAccessConfig(context.Context) (models.AccessConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access, nil
}

func (m *Memory) SetLockChannel(_ context.Context, channelID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.access.LockChannelID = channelID
	m.access.UpdatedAt = m.now()
	return nil
}

func (m *Memory) MarkJoinRequested(_ context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[userID] = models.User{UserID: userID, RequestedJoin: true, RequestedAt: at}
	return nil
}

func (m *Memory) GetUser(_ context.Context, userID int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *Memory) AppendLog(_ context.Context, entry models.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logs = append(m.logs, entry)
	return nil
}

func (m *Memory) RecentLogs(_ context.Context, limit int) ([]models.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := slices.Clone(m.logs)
	slices.Reverse(out)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.After(out[j].Time)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

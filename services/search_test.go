package services

import (
	"context"
	"fmt"
	"testing"

	"telegram-library/models"
	"telegram-library/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func courses(titles ...string) []models.Course {
	out := make([]models.Course, len(titles))
	for i, t := range titles {
		out[i] = models.Course{Title: t, Status: models.CourseLive}
	}
	return out
}

func titles(results []SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Course.Title
	}
	return out
}

func TestRankOrdersByScore(t *testing.T) {
	results := Rank("react", courses("React Basics", "react", "Reactive Systems"), MaxSearchResults)

	require.Len(t, results, 3)
	assert.Equal(t, []string{"react", "React Basics", "Reactive Systems"}, titles(results))
	assert.Equal(t, 100, results[0].Score)
	assert.Equal(t, 80, results[1].Score)
	// "reactive systems" contains "react", so it ties with "react basics"
	// and keeps its candidate position.
	assert.Equal(t, 80, results[2].Score)
}

func TestRankTiesKeepCandidateOrder(t *testing.T) {
	results := Rank("go", courses("Go Web", "Learn Go", "Go Tools", "Going Further"), MaxSearchResults)

	assert.Equal(t, []string{"Go Web", "Learn Go", "Go Tools", "Going Further"}, titles(results))
	for _, r := range results {
		assert.Equal(t, 80, r.Score)
	}
}

func TestRankNormalizesQueryAndTitle(t *testing.T) {
	results := Rank("  REACT   basics ", courses("react  Basics"), MaxSearchResults)

	require.Len(t, results, 1)
	assert.Equal(t, 100, results[0].Score)
}

func TestRankFuzzyScores(t *testing.T) {
	results := Rank("golang concurency", courses("Rust Systems", "Golang Concurrency"), MaxSearchResults)

	require.Len(t, results, 1)
	assert.Equal(t, "Golang Concurrency", results[0].Course.Title)
	// LCS 17 over 17+18 runes.
	assert.Equal(t, 58, results[0].Score)
}

func TestRankExcludesWeakMatches(t *testing.T) {
	assert.Empty(t, Rank("react", courses("Rust Systems"), MaxSearchResults))
	assert.LessOrEqual(t, Score("react", "rust systems"), minScore)
}

func TestRankLimit(t *testing.T) {
	var names []string
	for i := 0; i < 12; i++ {
		names = append(names, fmt.Sprintf("Course %02d", i))
	}
	results := Rank("course", courses(names...), MaxSearchResults)

	require.Len(t, results, MaxSearchResults)
	assert.Equal(t, names[:MaxSearchResults], titles(results))
}

func TestRankEmptyQuery(t *testing.T) {
	assert.Nil(t, Rank("   ", courses("Anything"), MaxSearchResults))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"", "", 1},
		{"abc", "abc", 1},
		{"abc", "", 0},
		{"abc", "xyz", 0},
		{"kitten", "sitting", 8.0 / 13.0},
		{"урок", "урока", 8.0 / 9.0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
			assert.InDelta(t, Similarity(tt.a, tt.b), Similarity(tt.b, tt.a), 1e-9)
		})
	}
}

func TestSearcherOnlyLiveCourses(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	st.Insert(models.Course{Title: "React Basics", Status: models.CourseLive})
	st.Insert(models.Course{Title: "React Drafts", Status: models.CourseUploading})
	searcher := NewSearcher(st, NewAudit(st))

	results, err := searcher.Search(ctx, 7, "react")
	require.NoError(t, err)
	assert.Equal(t, []string{"React Basics"}, titles(results))

	results, err = searcher.Search(ctx, 7, "haskell")
	require.NoError(t, err)
	assert.Empty(t, results)

	logs, err := st.RecentLogs(ctx, 10)
	require.NoError(t, err)
	var events []string
	for _, l := range logs {
		events = append(events, l.Event)
	}
	assert.Contains(t, events, "search_no_results")
}

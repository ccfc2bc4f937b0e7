package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"telegram-library/configs"
	"telegram-library/models"
	"telegram-library/store"

	"github.com/rs/zerolog"
)

const (
	MaxSearchResults = 8
	minScore         = 25

	scoreExact     = 100
	scoreSubstring = 80
	scoreFuzzy     = 60
)

type SearchResult struct {
	Course models.Course
	Score  int
}

// Searcher matches free text against live course titles.
type Searcher struct {
	courses store.CourseStore
	audit   *Audit
	log     zerolog.Logger
}

func NewSearcher(courses store.CourseStore, audit *Audit) *Searcher {
	return &Searcher{courses: courses, audit: audit, log: configs.Logger("search")}
}

// Search ranks live courses against query. An empty slice with a nil error
// means nothing matched.
func (s *Searcher) Search(ctx context.Context, userID int64, query string) ([]SearchResult, error) {
	start := time.Now()
	searchTotal.Inc()
	s.audit.Record(ctx, "search", userID, map[string]string{"query": query})

	courses, err := s.courses.ListLive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list live courses: %w", err)
	}

	results := Rank(query, courses, MaxSearchResults)
	searchDuration.Observe(time.Since(start).Seconds())

	s.log.Debug().
		Str("query", query).
		Int("candidates", len(courses)).
		Int("returned", len(results)).
		Msg("Search served")

	if len(results) == 0 {
		s.audit.Record(ctx, "search_no_results", userID, map[string]string{"query": query})
	}
	return results, nil
}

// Rank scores every candidate, drops weak matches and returns at most limit
// results. Equal scores keep candidate order.
func Rank(query string, courses []models.Course, limit int) []SearchResult {
	q := normalize(query)
	if q == "" {
		return nil
	}

	var results []SearchResult
	for _, c := range courses {
		score := Score(q, normalize(c.Title))
		if score <= minScore {
			continue
		}
		results = append(results, SearchResult{Course: c, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Score compares two normalized strings.
func Score(query, title string) int {
	switch {
	case query == title:
		return scoreExact
	case strings.Contains(title, query):
		return scoreSubstring
	default:
		return int(scoreFuzzy * Similarity(query, title))
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Similarity is the longest-common-subsequence ratio 2*LCS/(len(a)+len(b)),
// computed over runes. It is symmetric and lies in [0, 1].
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 1
	}
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			switch {
			case ra[i-1] == rb[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

// Package retrieval picks the thread documents injected into a prompt.
package retrieval

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/smartlang-chat/internal/domain"
	"github.com/tbourn/smartlang-chat/internal/prompt"
	"github.com/tbourn/smartlang-chat/internal/repo"
	"github.com/tbourn/smartlang-chat/internal/search"
)

// DefaultLimit bounds the documents per prompt.
const DefaultLimit = 10

// poolFactor widens the candidate pool on backends that cannot rank, so the
// local ranker has something to choose from.
const poolFactor = 5

// Selector runs the retrieval policy for one submission:
//   - blank query: the thread's most recent documents
//   - otherwise: documents matching the query, best first
//
// No match is an empty result, not an error.
type Selector struct {
	DB     *gorm.DB
	Limit  int
	Ranker search.Ranker
}

// New returns a Selector with a Jaccard ranker that ignores English
// stopwords.
func New(db *gorm.DB, limit int) *Selector {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Selector{DB: db, Limit: limit, Ranker: search.NewJaccard(search.WithStopwords(search.EnglishStopwords))}
}

// Select returns at most Limit documents of threadID for query.
func (s *Selector) Select(ctx context.Context, threadID, query string) ([]domain.Document, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	query = strings.TrimSpace(query)
	if query == "" || s.Ranker == nil || repo.RanksSearch(s.DB) {
		return repo.SearchDocuments(ctx, s.DB, query, threadID, limit)
	}

	pool, err := repo.SearchDocuments(ctx, s.DB, query, threadID, limit*poolFactor)
	if err != nil {
		return nil, err
	}
	return s.rank(query, pool, limit), nil
}

func (s *Selector) rank(query string, docs []domain.Document, limit int) []domain.Document {
	if len(docs) == 0 {
		return docs
	}
	byID := make(map[uint]domain.Document, len(docs))
	cands := make([]search.Candidate, 0, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
		cands = append(cands, search.Candidate{ID: d.ID, Text: d.Title + " " + d.Content})
	}
	ranked := s.Ranker.Rank(query, cands, limit)
	out := make([]domain.Document, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, byID[r.ID])
	}
	return out
}

// Knowledge renders docs as the prompt's knowledge block.
func Knowledge(docs []domain.Document) string {
	src := make([]prompt.Source, 0, len(docs))
	for _, d := range docs {
		src = append(src, prompt.Source{Title: d.Title, Content: d.Content})
	}
	return prompt.FormatKnowledge(src)
}

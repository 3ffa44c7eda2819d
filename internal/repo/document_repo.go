// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Document
// model and the per-thread document search used for retrieval.
package repo

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/smartlang-chat/internal/domain"
	"github.com/tbourn/smartlang-chat/internal/search"
)

// DefaultSearchLimit bounds SearchDocuments when the caller passes limit <= 0.
const DefaultSearchLimit = 10

// SaveDocument inserts a document. Identical titles or contents are not
// de-duplicated.
func SaveDocument(ctx context.Context, db *gorm.DB, title, content, threadID string) (*domain.Document, error) {
	d := &domain.Document{Title: title, Content: content, ThreadID: threadID}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// ListDocuments returns up to limit documents of a thread, newest first.
func ListDocuments(ctx context.Context, db *gorm.DB, threadID string, limit int) ([]domain.Document, error) {
	var out []domain.Document
	q := db.WithContext(ctx).Where("thread_id = ?", threadID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// SearchDocuments returns at most limit documents of threadID.
//
// A blank query returns the most recent documents. Otherwise PostgreSQL
// matches with plainto_tsquery and orders by ts_rank_cd; other backends
// require every query keyword (English stopwords dropped, as plainto_tsquery
// does) to occur in the content, case-insensitively, and return the newest
// matches, leaving ranking to the caller.
func SearchDocuments(ctx context.Context, db *gorm.DB, query, threadID string, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return ListDocuments(ctx, db, threadID, limit)
	}

	var out []domain.Document
	q := db.WithContext(ctx).Where("thread_id = ?", threadID)
	if isPostgres(db) {
		err := q.
			Where("to_tsvector('english', content) @@ plainto_tsquery('english', ?)", query).
			Order(clause.OrderBy{Expression: clause.Expr{
				SQL:                "ts_rank_cd(to_tsvector('english', content), plainto_tsquery('english', ?)) DESC, id DESC",
				Vars:               []any{query},
				WithoutParentheses: true,
			}}).
			Limit(limit).
			Find(&out).Error
		return out, err
	}

	terms := search.Keywords(query)
	if len(terms) == 0 {
		return out, nil
	}
	// SQLite's LIKE folds ASCII only; other terms are matched here after
	// lower-casing the content the same way the terms were.
	var folded []string
	for _, t := range terms {
		if isASCII(t) {
			q = q.Where("content LIKE ? ESCAPE '\\'", "%"+escapeLike(t)+"%")
		} else {
			folded = append(folded, t)
		}
	}
	q = q.Order("id DESC")
	if len(folded) == 0 {
		err := q.Limit(limit).Find(&out).Error
		return out, err
	}

	var rows []domain.Document
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, d := range rows {
		if containsAll(strings.ToLower(d.Content), folded) {
			out = append(out, d)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func containsAll(s string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}

// RanksSearch reports whether SearchDocuments orders matches by relevance
// on this backend.
func RanksSearch(db *gorm.DB) bool { return isPostgres(db) }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

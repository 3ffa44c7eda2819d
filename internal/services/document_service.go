// Package services – DocumentService
//
// DocumentService stores extracted upload text as thread documents and
// renders the knowledge-base panel.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/smartlang-chat/internal/domain"
	"github.com/tbourn/smartlang-chat/internal/repo"
)

// DocumentPreview is one row of the knowledge-base panel.
type DocumentPreview struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	Preview   string `json:"preview"`
	Truncated bool   `json:"truncated"`
}

// maxTitleRunes matches the width of documents.title.
const maxTitleRunes = 255

// DocumentService persists and lists thread documents.
type DocumentService struct {
	DB *gorm.DB

	// PanelLimit bounds the panel (default 50).
	PanelLimit int
	// PreviewRunes is the preview length (default 400).
	PreviewRunes int
}

// NewDocumentService returns a DocumentService with panel defaults.
func NewDocumentService(db *gorm.DB) *DocumentService {
	return &DocumentService{DB: db, PanelLimit: 50, PreviewRunes: 400}
}

// Save stores a document. Repeated uploads of the same file create
// separate rows. Titles longer than the column are clipped.
func (s *DocumentService) Save(ctx context.Context, threadID, title, content string) (*domain.Document, error) {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes])
	}
	d, err := repo.SaveDocument(ctx, s.DB, title, content, threadID)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	return d, nil
}

// Panel returns the thread's newest documents with content previews.
func (s *DocumentService) Panel(ctx context.Context, threadID string) ([]DocumentPreview, error) {
	limit := s.PanelLimit
	if limit <= 0 {
		limit = 50
	}
	docs, err := repo.ListDocuments(ctx, s.DB, threadID, limit)
	if err != nil {
		return nil, storeErr(err, nil)
	}
	out := make([]DocumentPreview, 0, len(docs))
	for _, d := range docs {
		p, cut := Preview(d.Content, s.PreviewRunes)
		out = append(out, DocumentPreview{ID: d.ID, Title: d.Title, Preview: p, Truncated: cut})
	}
	return out, nil
}

// Preview returns the first n runes of content followed by "..." when the
// content is longer. n <= 0 means 400.
func Preview(content string, n int) (string, bool) {
	if n <= 0 {
		n = 400
	}
	if utf8.RuneCountInString(content) <= n {
		return content, false
	}
	return string([]rune(content)[:n]) + "...", true
}

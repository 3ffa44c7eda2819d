// Package search ranks a thread's documents against a free-text query. It is
// used when the persistence backend cannot rank matches itself (SQLite), and
// it supplies the tokenizer the substring search is built from.
//
//   - No logging in the library (callers decide how/what to log)
//   - Unicode-aware tokenization with optional stop-word removal
//   - Deterministic scoring and sorting (stable order for ties)
//
// Scoring uses Jaccard similarity between the query token set and each
// document's token set: score = |Q ∩ D| / |Q ∪ D|.
package search

import (
	"regexp"
	"sort"
	"strings"
)

// Candidate is a document offered for ranking.
type Candidate struct {
	ID   uint
	Text string
}

// Result is a ranked document ID with its similarity score.
type Result struct {
	ID    uint
	Score float64
}

// Ranker orders candidates by relevance to a query.
type Ranker interface {
	Rank(query string, docs []Candidate, k int) []Result
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords map[string]struct{}
}

func defaultConfig() config {
	return config{}
}

// WithStopwords drops the given words from both query and document tokens.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type jaccard struct {
	cfg config
}

// NewJaccard returns a Ranker scoring by token-set Jaccard similarity.
func NewJaccard(opts ...Option) Ranker {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &jaccard{cfg: cfg}
}

// Rank returns up to k candidates, best first. Candidates sharing no token
// with the query are kept after the scored ones, since the store already
// judged them to match. Ties go to the higher (newer) ID. A blank query
// keeps the input order.
func (j *jaccard) Rank(q string, docs []Candidate, k int) []Result {
	if len(docs) == 0 {
		return nil
	}
	if k <= 0 || k > len(docs) {
		k = len(docs)
	}

	qTokens := tokenize(q, j.cfg.stopwords)
	buf := make([]Result, 0, len(docs))
	for _, d := range docs {
		buf = append(buf, Result{ID: d.ID, Score: score(qTokens, tokenize(d.Text, j.cfg.stopwords))})
	}
	if len(qTokens) == 0 {
		return buf[:k]
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].Score != buf[b].Score {
			return buf[a].Score > buf[b].Score
		}
		return buf[a].ID > buf[b].ID
	})
	return buf[:k]
}

// Terms returns the distinct lower-cased tokens of s in first-seen order.
func Terms(s string) []string {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	return out
}

func score(q, d map[string]struct{}) float64 {
	over := overlap(q, d)
	if over == 0 {
		return 0
	}
	return float64(over) / float64(len(q)+len(d)-over)
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

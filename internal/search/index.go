// Package search provides a small, deterministic, concurrency-safe in-memory
// keyword index over transcript messages.
//
//   - No logging in the library (callers decide how/what to log)
//   - Functional options for filtering and stop words
//   - Unicode-aware tokenization
//   - Immutable after construction (safe for concurrent use)
//   - Deterministic scoring and sorting (stable order for ties)
//
// Each message is split into facts (see Facts) and every fact is scored with
// the Jaccard similarity between the query token set and the fact token set:
// score = |Q ∩ F| / |Q ∪ F|.
package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Document is one indexed message.
type Document struct {
	ID     string
	Origin string
	Text   string
}

// Result is a ranked snippet with the message it came from.
type Result struct {
	DocumentID string  `json:"message_id"`
	Origin     string  `json:"origin"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

// Index is the minimal interface implemented by all search indices.
type Index interface {
	TopK(query string, k int) []Result
}

type Option func(*config)

type config struct {
	minFactRunes int
	stopwords    map[string]struct{}
	maxDocs      int
}

func defaultConfig() config {
	return config{minFactRunes: 3}
}

// WithMinFactRunes drops facts shorter than n runes. Negative values are ignored.
func WithMinFactRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minFactRunes = n
		}
	}
}

// WithStopwords removes the given words from documents and queries.
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

// WithMaxDocs indexes at most the n newest documents.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

type fact struct {
	docID  string
	origin string
	text   string
	tokens map[string]struct{}
	seq    int
}

type index struct {
	cfg   config
	facts []fact
}

// NewIndex builds an Index over docs, given oldest first.
func NewIndex(docs []Document, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxDocs > 0 && len(docs) > cfg.maxDocs {
		docs = docs[len(docs)-cfg.maxDocs:]
	}

	out := make([]fact, 0, len(docs))
	seq := 0
	for _, d := range docs {
		for _, f := range Facts(d.Text) {
			if cfg.minFactRunes > 0 && utf8.RuneCountInString(f) < cfg.minFactRunes {
				continue
			}
			toks := tokenize(f, cfg.stopwords)
			if len(toks) == 0 {
				continue
			}
			out = append(out, fact{docID: d.ID, origin: d.Origin, text: f, tokens: toks, seq: seq})
			seq++
		}
	}
	return &index{cfg: cfg, facts: out}
}

// TopK returns up to k best-matching facts. Ties prefer newer facts.
func (i *index) TopK(q string, k int) []Result {
	if len(i.facts) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	type scored struct {
		f     *fact
		score float64
	}
	buf := make([]scored, 0, k*4)
	for n := range i.facts {
		f := &i.facts[n]
		over := overlap(qTokens, f.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + len(f.tokens) - over)
		buf = append(buf, scored{f: f, score: float64(over) / union})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		return buf[a].f.seq > buf[b].f.seq
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for n := 0; n < k; n++ {
		f := buf[n].f
		out[n] = Result{DocumentID: f.docID, Origin: f.origin, Snippet: f.text, Score: buf[n].score}
	}
	return out
}

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

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

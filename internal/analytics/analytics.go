// Package analytics aggregates query and ingestion statistics in memory
// and periodically snapshots them to PostgreSQL.
package analytics

import (
	"sort"
	"sync"
	"time"
)

// QueryKind identifies the kind of query an event records.
type QueryKind string

const (
	KindFreeText QueryKind = "free_text"
	KindPhrase   QueryKind = "phrase"
)

// QueryEvent is emitted after each query.
type QueryEvent struct {
	Kind      QueryKind `json:"kind"`
	Terms     []string  `json:"terms"`
	Hits      int       `json:"hits"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
}

// IngestEvent is emitted after a document is indexed.
type IngestEvent struct {
	DocumentID string    `json:"document_id"`
	TokenCount int       `json:"token_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// AggregatedStats is a point-in-time summary of the collected events.
type AggregatedStats struct {
	TotalQueries      int64            `json:"total_queries"`
	PhraseQueries     int64            `json:"phrase_queries"`
	FreeTextQueries   int64            `json:"free_text_queries"`
	ZeroResultQueries int64            `json:"zero_result_queries"`
	CacheHits         int64            `json:"cache_hits"`
	TotalDocsIndexed  int64            `json:"total_docs_indexed"`
	TotalTokens       int64            `json:"total_tokens"`
	AvgQueryLatencyMs float64          `json:"avg_query_latency_ms"`
	TopTerms          map[string]int64 `json:"top_terms"`
	CapturedAt        time.Time        `json:"captured_at"`
}

// Aggregator collects events behind a mutex. It keeps per-term query
// counts bounded by periodically pruning to the most frequent entries.
type Aggregator struct {
	mu            sync.Mutex
	totalQueries  int64
	phraseQueries int64
	freeQueries   int64
	zeroResults   int64
	cacheHits     int64
	docsIndexed   int64
	totalTokens   int64
	latencySumMs  int64
	termCounts    map[string]int64
}

const maxTrackedTerms = 1000

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		termCounts: make(map[string]int64),
	}
}

// RecordQuery folds a query event into the running stats.
func (a *Aggregator) RecordQuery(ev QueryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalQueries++
	switch ev.Kind {
	case KindPhrase:
		a.phraseQueries++
	default:
		a.freeQueries++
	}
	if ev.Hits == 0 {
		a.zeroResults++
	}
	if ev.CacheHit {
		a.cacheHits++
	}
	a.latencySumMs += ev.LatencyMs
	for _, term := range ev.Terms {
		a.termCounts[term]++
	}
	if len(a.termCounts) > 2*maxTrackedTerms {
		a.pruneLocked()
	}
}

// RecordIngest folds an ingestion event into the running stats.
func (a *Aggregator) RecordIngest(ev IngestEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.docsIndexed++
	a.totalTokens += int64(ev.TokenCount)
}

// Stats returns a snapshot of the aggregated statistics.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	stats := AggregatedStats{
		TotalQueries:      a.totalQueries,
		PhraseQueries:     a.phraseQueries,
		FreeTextQueries:   a.freeQueries,
		ZeroResultQueries: a.zeroResults,
		CacheHits:         a.cacheHits,
		TotalDocsIndexed:  a.docsIndexed,
		TotalTokens:       a.totalTokens,
		TopTerms:          make(map[string]int64),
		CapturedAt:        time.Now().UTC(),
	}
	if a.totalQueries > 0 {
		stats.AvgQueryLatencyMs = float64(a.latencySumMs) / float64(a.totalQueries)
	}
	for term, n := range topTerms(a.termCounts, 25) {
		stats.TopTerms[term] = n
	}
	return stats
}

// pruneLocked keeps only the most frequent tracked terms. Callers hold the
// mutex.
func (a *Aggregator) pruneLocked() {
	a.termCounts = topTerms(a.termCounts, maxTrackedTerms)
}

func topTerms(counts map[string]int64, n int) map[string]int64 {
	if len(counts) <= n {
		out := make(map[string]int64, len(counts))
		for term, c := range counts {
			out[term] = c
		}
		return out
	}
	type entry struct {
		term  string
		count int64
	}
	entries := make([]entry, 0, len(counts))
	for term, c := range counts {
		entries = append(entries, entry{term, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].term < entries[j].term
	})
	out := make(map[string]int64, n)
	for _, e := range entries[:n] {
		out[e.term] = e.count
	}
	return out
}

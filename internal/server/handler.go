// Package server exposes the engine over HTTP and owns the single-writer
// contract: every engine call goes through one mutex, so the HTTP
// handlers and the Kafka consumer can share one Engine safely.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/quiverdb/quiver/internal/analytics"
	"github.com/quiverdb/quiver/internal/engine"
	"github.com/quiverdb/quiver/internal/server/cache"
	"github.com/quiverdb/quiver/pkg/errors"
	"github.com/quiverdb/quiver/pkg/logger"
	"github.com/quiverdb/quiver/pkg/metrics"
)

const (
	maxTitleLength = 1024
	maxBodyLength  = 1 << 20
)

// Server serialises access to one Engine and wires the optional query
// cache, analytics aggregator, and metrics around it.
type Server struct {
	mu      sync.Mutex
	engine  *engine.Engine
	cache   *cache.QueryCache
	agg     *analytics.Aggregator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Server. cache, agg, and m may be nil.
func New(eng *engine.Engine, qc *cache.QueryCache, agg *analytics.Aggregator, m *metrics.Metrics) *Server {
	return &Server{
		engine:  eng,
		cache:   qc,
		agg:     agg,
		metrics: m,
		logger:  slog.Default().With("component", "server"),
	}
}

// IngestRequest is the body of POST /api/v1/documents.
type IngestRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// IndexDocument validates and indexes one document. It is the single
// write path shared by the HTTP handler and the Kafka consumer.
func (s *Server) IndexDocument(req IngestRequest) error {
	if err := validateIngest(&req); err != nil {
		return err
	}
	s.mu.Lock()
	err := s.engine.AddDocument(req.ID, req.Title, req.Body)
	memSize := s.engine.MemorySize()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.DocsIndexedTotal.Inc()
		s.metrics.MemorySegmentBytes.Set(float64(memSize))
	}
	if s.agg != nil {
		s.agg.RecordIngest(analytics.IngestEvent{
			DocumentID: req.ID,
			Timestamp:  time.Now().UTC(),
		})
	}
	return nil
}

// Search runs a free-text query through the cache, falling back to the
// engine on a miss.
func (s *Server) Search(r *http.Request, terms []string) (engine.Results, bool, error) {
	return s.query(r, "free_text", terms, func() (engine.Results, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.engine.FreeTextQuery(terms)
	})
}

// Phrase runs an exact-phrase query through the cache.
func (s *Server) Phrase(r *http.Request, terms []string) (engine.Results, bool, error) {
	return s.query(r, "phrase", terms, func() (engine.Results, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.engine.PhraseQuery(terms)
	})
}

func (s *Server) query(r *http.Request, kind string, terms []string, compute func() (engine.Results, error)) (engine.Results, bool, error) {
	start := time.Now()
	var (
		results engine.Results
		hit     bool
		err     error
	)
	if s.cache != nil {
		results, hit, err = s.cache.GetOrCompute(r.Context(), kind, terms, compute)
	} else {
		results, err = compute()
	}
	latency := time.Since(start)

	if s.metrics != nil {
		s.metrics.QueryLatency.WithLabelValues(kind).Observe(latency.Seconds())
		outcome := "hit"
		switch {
		case err != nil:
			outcome = "error"
		case results.Len() == 0:
			outcome = "zero_result"
		}
		s.metrics.QueriesTotal.WithLabelValues(kind, outcome).Inc()
		if err == nil {
			s.metrics.QueryResultsCount.Observe(float64(results.Len()))
			if s.cache != nil {
				if hit {
					s.metrics.CacheHitsTotal.Inc()
				} else {
					s.metrics.CacheMissesTotal.Inc()
				}
			}
		}
	}
	if s.agg != nil && err == nil {
		s.agg.RecordQuery(analytics.QueryEvent{
			Kind:      analytics.QueryKind(kind),
			Terms:     terms,
			Hits:      results.Len(),
			LatencyMs: latency.Milliseconds(),
			CacheHit:  hit,
			Timestamp: time.Now().UTC(),
		})
	}
	return results, hit, err
}

// Flush merges the memory segment to disk.
func (s *Server) Flush() error {
	s.mu.Lock()
	err := s.engine.Save()
	memSize := s.engine.MemorySize()
	terms, termErr := s.engine.DiskTerms()
	s.mu.Unlock()
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.IndexFlushesTotal.WithLabelValues(status).Inc()
		s.metrics.MemorySegmentBytes.Set(float64(memSize))
		if termErr == nil {
			s.metrics.DiskSegmentTerms.Set(float64(terms))
		}
	}
	return err
}

// Close flushes and closes the engine.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Close()
}

// Routes registers the API handlers on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/documents", s.handleIngest)
	mux.HandleFunc("GET /api/v1/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/phrase", s.handlePhrase)
	mux.HandleFunc("POST /api/v1/flush", s.handleFlush)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	return mux
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest, "decoding request body: %v", err))
		return
	}
	if req.ID == "" {
		req.ID = req.Title
	}
	if err := s.IndexDocument(req); err != nil {
		writeError(w, r, err)
		return
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(r.Context()); err != nil {
			logger.FromContext(r.Context()).Warn("cache invalidation failed", "error", err)
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": req.ID})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	terms := queryTerms(r)
	if len(terms) == 0 {
		writeError(w, r, errors.New(errors.ErrInvalidInput, http.StatusBadRequest, "missing query parameter q"))
		return
	}
	results, hit, err := s.Search(r, terms)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResults(w, results, hit)
}

func (s *Server) handlePhrase(w http.ResponseWriter, r *http.Request) {
	terms := queryTerms(r)
	if len(terms) == 0 {
		writeError(w, r, errors.New(errors.ErrInvalidInput, http.StatusBadRequest, "missing query parameter q"))
		return
	}
	results, hit, err := s.Phrase(r, terms)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResults(w, results, hit)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.Flush(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "flushed"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	stats := map[string]any{
		"docs_added":        s.engine.DocsAdded(),
		"memory_size_bytes": s.engine.MemorySize(),
		"memory_terms":      s.engine.MemoryTerms(),
	}
	if terms, err := s.engine.DiskTerms(); err == nil {
		stats["disk_terms"] = terms
	}
	if docs, err := s.engine.DocCount(); err == nil {
		stats["doc_count"] = docs
	}
	s.mu.Unlock()
	if s.cache != nil {
		hits, misses := s.cache.Stats()
		stats["cache_hits"] = hits
		stats["cache_misses"] = misses
	}
	if s.agg != nil {
		stats["analytics"] = s.agg.Stats()
	}
	writeJSON(w, http.StatusOK, stats)
}

func queryTerms(r *http.Request) []string {
	return strings.Fields(r.URL.Query().Get("q"))
}

func validateIngest(req *IngestRequest) error {
	title := strings.TrimSpace(req.Title)
	if len(title) > maxTitleLength {
		return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest, "title must be at most %d characters", maxTitleLength)
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return errors.New(errors.ErrInvalidInput, http.StatusBadRequest, "body is required and must not be empty")
	}
	if len(body) > maxBodyLength {
		return errors.Newf(errors.ErrInvalidInput, http.StatusBadRequest, "body must be at most %d bytes", maxBodyLength)
	}
	if req.ID == "" && title == "" {
		return errors.New(errors.ErrInvalidInput, http.StatusBadRequest, "either id or title is required")
	}
	return nil
}

type resultsResponse struct {
	engine.Results
	Total    int  `json:"total"`
	CacheHit bool `json:"cache_hit"`
}

func writeResults(w http.ResponseWriter, results engine.Results, hit bool) {
	writeJSON(w, http.StatusOK, resultsResponse{
		Results:  results,
		Total:    results.Len(),
		CacheHit: hit,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf("%v", err)})
}

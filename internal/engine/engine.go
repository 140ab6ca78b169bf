// Package engine composes the analyzer, document store, memory segment,
// and disk segment into the index façade. Documents are buffered in memory
// and merged into the disk segment whenever the buffer's size estimate
// crosses the configured limit; queries fan out over both segments and
// union their results.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/quiverdb/quiver/internal/analysis"
	"github.com/quiverdb/quiver/internal/docstore"
	"github.com/quiverdb/quiver/internal/index"
	pkgerrors "github.com/quiverdb/quiver/pkg/errors"
)

// DefaultMemoryLimitBytes is the flush threshold used when the config
// leaves it unset.
const DefaultMemoryLimitBytes = 500_000_000

// Config holds the file paths and tuning knobs for one engine instance.
type Config struct {
	IndexPath        string
	DocstorePath     string
	StopwordsPath    string
	MemoryLimitBytes int64
}

// Engine is a single-writer dynamic index over one disk segment file and
// one document store file. It is not safe for concurrent use; callers that
// share an Engine across goroutines must serialise access.
type Engine struct {
	analyzer    *analysis.Analyzer
	docs        *docstore.Store
	memory      *index.MemorySegment
	disk        *index.DiskSegment
	memoryLimit int64
	logger      *slog.Logger
	docsAdded   int64
}

// Open creates an Engine over the configured files, creating them if
// needed.
func Open(cfg Config) (*Engine, error) {
	analyzer, err := analysis.New(cfg.StopwordsPath)
	if err != nil {
		return nil, fmt.Errorf("creating analyzer: %w", err)
	}
	docs, err := docstore.Open(cfg.DocstorePath)
	if err != nil {
		return nil, err
	}
	disk, err := index.OpenDiskSegment(cfg.IndexPath)
	if err != nil {
		docs.Close()
		return nil, err
	}
	limit := cfg.MemoryLimitBytes
	if limit <= 0 {
		limit = DefaultMemoryLimitBytes
	}
	return &Engine{
		analyzer:    analyzer,
		docs:        docs,
		memory:      index.NewMemorySegment(),
		disk:        disk,
		memoryLimit: limit,
		logger:      slog.Default().With("component", "engine"),
	}, nil
}

// AddDocument persists the raw document and buffers its tokens. Re-adding
// a document id overwrites the stored document and re-merges its
// positions; postings from a previous body are not removed. A docstore
// failure aborts the call before any token is buffered.
func (e *Engine) AddDocument(docID, title, body string) error {
	if err := e.docs.Put(docID, title, body); err != nil {
		return err
	}
	tokens := e.analyzer.Tokenize(title + " " + body)
	for _, token := range tokens {
		e.memory.AddToken(token.Term, docID, token.Position)
	}
	e.docsAdded++
	e.logger.Debug("document indexed in memory",
		"doc_id", docID,
		"token_count", len(tokens),
		"mem_size", e.memory.Size(),
	)
	if e.memory.Size() >= e.memoryLimit {
		e.logger.Info("memory segment reached limit, merging to disk",
			"size", e.memory.Size(),
			"limit", e.memoryLimit,
		)
		if err := e.Save(); err != nil {
			return fmt.Errorf("flushing memory segment: %w", err)
		}
	}
	return nil
}

// FreeTextQuery returns the documents containing any of the given terms.
func (e *Engine) FreeTextQuery(terms []string) (Results, error) {
	matched := make(map[string]struct{})
	for _, raw := range terms {
		term := e.analyzer.Normalize(raw)
		if term == "" {
			continue
		}
		memIDs := e.memory.OneWordQuery(term)
		diskIDs, err := e.disk.OneWordQuery(term)
		if err != nil {
			return Results{}, err
		}
		for _, id := range memIDs {
			matched[id] = struct{}{}
		}
		for _, id := range diskIDs {
			matched[id] = struct{}{}
		}
	}
	return e.assemble(matched, terms)
}

// PhraseQuery returns the documents containing the given terms at
// consecutive positions. Terms that normalise to nothing (stop-words) are
// dropped, matching the position numbering of the analysed stream.
func (e *Engine) PhraseQuery(terms []string) (Results, error) {
	normalized := make([]string, 0, len(terms))
	for _, raw := range terms {
		if term := e.analyzer.Normalize(raw); term != "" {
			normalized = append(normalized, term)
		}
	}
	if len(normalized) == 0 {
		return Results{}, nil
	}
	matched := make(map[string]struct{})
	for _, id := range e.memory.PhraseQuery(normalized) {
		matched[id] = struct{}{}
	}
	diskIDs, err := e.disk.PhraseQuery(normalized)
	if err != nil {
		return Results{}, err
	}
	for _, id := range diskIDs {
		matched[id] = struct{}{}
	}
	return e.assemble(matched, terms)
}

// assemble materialises a doc-id set into Results ordered by ascending id.
// Documents missing from the store are logged and omitted.
func (e *Engine) assemble(matched map[string]struct{}, terms []string) (Results, error) {
	ids := make([]string, 0, len(matched))
	for id := range matched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var results Results
	for _, id := range ids {
		title, body, err := e.docs.Get(id)
		if err != nil {
			if errors.Is(err, pkgerrors.ErrDocumentNotFound) {
				e.logger.Warn("matched document missing from store", "doc_id", id)
				continue
			}
			return Results{}, err
		}
		results.DocIDs = append(results.DocIDs, id)
		results.Titles = append(results.Titles, title)
		results.Snippets = append(results.Snippets, snippet(body, terms))
	}
	return results, nil
}

// Save merges the memory segment into the disk segment and clears it. On
// a partial failure the buffer is kept so a retry can complete the merge;
// re-merging already-written terms is idempotent.
func (e *Engine) Save() error {
	terms := e.memory.Terms()
	if terms == 0 {
		return nil
	}
	if err := e.memory.MergeIntoDisk(e.disk); err != nil {
		e.logger.Error("merge to disk failed, keeping memory segment", "error", err)
		return err
	}
	e.memory.Clear()
	e.logger.Info("memory segment merged to disk", "terms", terms)
	return nil
}

// Close flushes pending postings and releases the underlying files.
func (e *Engine) Close() error {
	saveErr := e.Save()
	if err := e.disk.Close(); err != nil && saveErr == nil {
		saveErr = fmt.Errorf("closing disk segment: %w", err)
	}
	if err := e.docs.Close(); err != nil && saveErr == nil {
		saveErr = fmt.Errorf("closing docstore: %w", err)
	}
	return saveErr
}

// MemorySize returns the memory segment's packed-size estimate in bytes.
func (e *Engine) MemorySize() int64 {
	return e.memory.Size()
}

// MemoryTerms returns the number of terms buffered in memory.
func (e *Engine) MemoryTerms() int {
	return e.memory.Terms()
}

// DiskTerms returns the number of terms in the disk segment.
func (e *Engine) DiskTerms() (int, error) {
	return e.disk.Terms()
}

// DocsAdded returns the number of AddDocument calls since Open.
func (e *Engine) DocsAdded() int64 {
	return e.docsAdded
}

// DocCount returns the number of documents in the document store.
func (e *Engine) DocCount() (int, error) {
	return e.docs.Count()
}

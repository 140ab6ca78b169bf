// Package benchmark contains Go benchmarks for the posting algebra, the
// memory segment, and the full engine, measuring throughput and
// allocation behaviour.
package benchmark

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/quiverdb/quiver/internal/analysis"
	"github.com/quiverdb/quiver/internal/engine"
	"github.com/quiverdb/quiver/internal/index"
)

const benchBody = "winter is coming and the north remembers the lone wolf dies but the pack survives"

// BenchmarkMemorySegmentAddToken measures per-token insert throughput into
// the memory segment.
func BenchmarkMemorySegmentAddToken(b *testing.B) {
	m := index.NewMemorySegment()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.AddToken("wint", fmt.Sprintf("doc-%d", i%10000), i)
	}
}

// BenchmarkMemorySegmentOneWordQuery measures single-term lookup latency
// over 10 000 documents.
func BenchmarkMemorySegmentOneWordQuery(b *testing.B) {
	m := index.NewMemorySegment()
	for i := 0; i < 10000; i++ {
		m.AddToken("wint", fmt.Sprintf("doc-%d", i), i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.OneWordQuery("wint")
	}
}

// BenchmarkFindPhrases measures the phrase-intersection algorithm over
// three posting lists with many shared documents.
func BenchmarkFindPhrases(b *testing.B) {
	var winter, is, coming index.PostingList
	for i := 0; i < 1000; i++ {
		docID := fmt.Sprintf("doc-%d", i)
		winter.AddPosting(index.NewPosting(docID, 0, 5))
		is.AddPosting(index.NewPosting(docID, 1))
		coming.AddPosting(index.NewPosting(docID, 2, 4))
	}
	lists := []index.PostingList{winter, is, coming}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = index.FindPhrases(lists)
	}
}

// BenchmarkTokenize measures analyzer throughput on a short document.
func BenchmarkTokenize(b *testing.B) {
	analyzer, err := analysis.New("")
	if err != nil {
		b.Fatalf("analysis.New: %v", err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = analyzer.Tokenize(benchBody)
	}
}

// BenchmarkEngineAddDocument measures full ingestion throughput including
// the document store write.
func BenchmarkEngineAddDocument(b *testing.B) {
	dir := b.TempDir()
	eng, err := engine.Open(engine.Config{
		IndexPath:    filepath.Join(dir, "bench.index"),
		DocstorePath: filepath.Join(dir, "bench_docs.db"),
	})
	if err != nil {
		b.Fatalf("engine.Open: %v", err)
	}
	defer eng.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		docID := fmt.Sprintf("doc-%d", i)
		if err := eng.AddDocument(docID, "benchmark title", benchBody); err != nil {
			b.Fatalf("AddDocument: %v", err)
		}
	}
}

// BenchmarkEnginePhraseQuery measures phrase query latency with a
// populated memory segment.
func BenchmarkEnginePhraseQuery(b *testing.B) {
	dir := b.TempDir()
	eng, err := engine.Open(engine.Config{
		IndexPath:    filepath.Join(dir, "bench.index"),
		DocstorePath: filepath.Join(dir, "bench_docs.db"),
	})
	if err != nil {
		b.Fatalf("engine.Open: %v", err)
	}
	defer eng.Close()
	for i := 0; i < 1000; i++ {
		docID := fmt.Sprintf("doc-%d", i)
		if err := eng.AddDocument(docID, "", benchBody); err != nil {
			b.Fatalf("AddDocument: %v", err)
		}
	}

	terms := []string{"winter", "is", "coming"}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := eng.PhraseQuery(terms); err != nil {
			b.Fatalf("PhraseQuery: %v", err)
		}
	}
}

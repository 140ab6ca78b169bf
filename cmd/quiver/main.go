// Command quiver is the offline driver for the index engine.
//
// Subcommands:
//
//	quiver index -dump <pages.xml[.bz2]>    index a MediaWiki dump locally
//	quiver publish -dump <pages.xml[.bz2]>  publish a dump to Kafka
//	quiver query                            interactive query prompt
//
// Queries read one line at a time. A line starting with "phrase:" runs an
// exact-phrase query; anything else is a free-text query over its words.
//
// Usage:
//
//	go run ./cmd/quiver index -dump enwikiquote-pages-meta-current.xml.bz2
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/quiverdb/quiver/internal/corpus"
	"github.com/quiverdb/quiver/internal/engine"
	"github.com/quiverdb/quiver/internal/server/consumer"
	"github.com/quiverdb/quiver/pkg/config"
	"github.com/quiverdb/quiver/pkg/kafka"
	"github.com/quiverdb/quiver/pkg/logger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	flags := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := flags.String("config", "", "path to config file")
	dumpPath := flags.String("dump", "", "path to a MediaWiki XML dump (.xml or .xml.bz2)")
	flags.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, "text")

	switch cmd {
	case "index":
		err = runIndex(cfg, *dumpPath)
	case "publish":
		err = runPublish(cfg, *dumpPath)
	case "query":
		err = runQuery(cfg)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: quiver <index|publish|query> [-config path] [-dump path]")
}

func openEngine(cfg *config.Config) (*engine.Engine, error) {
	return engine.Open(engine.Config{
		IndexPath:        cfg.Index.IndexPath,
		DocstorePath:     cfg.Index.DocstorePath,
		StopwordsPath:    cfg.Index.StopwordsPath,
		MemoryLimitBytes: cfg.Index.MemoryLimitBytes,
	})
}

// runIndex streams the dump into a local engine, flushing once at the end.
func runIndex(cfg *config.Config, dumpPath string) error {
	if dumpPath == "" {
		return fmt.Errorf("index: -dump is required")
	}
	reader, err := corpus.OpenDump(dumpPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	eng, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	slog.Info("indexing started", "dump", dumpPath)
	start := time.Now()
	count := 0
	for {
		doc, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := eng.AddDocument(doc.ID, doc.Title, doc.Body); err != nil {
			return fmt.Errorf("indexing document %q: %w", doc.ID, err)
		}
		count++
		if count%1000 == 0 {
			slog.Info("indexing progress", "docs", count, "mem_size", eng.MemorySize())
		}
	}
	if err := eng.Save(); err != nil {
		return err
	}
	slog.Info("indexing complete",
		"docs", count,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// runPublish streams the dump onto the document-ingest topic.
func runPublish(cfg *config.Config, dumpPath string) error {
	if dumpPath == "" {
		return fmt.Errorf("publish: -dump is required")
	}
	reader, err := corpus.OpenDump(dumpPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	count := 0
	for {
		doc, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		event := consumer.IngestEvent{
			DocumentID:  doc.ID,
			Title:       doc.Title,
			Body:        doc.Body,
			PublishedAt: time.Now().UTC(),
		}
		if err := producer.PublishJSON(ctx, doc.ID, event); err != nil {
			return err
		}
		count++
	}
	slog.Info("publish complete", "docs", count, "topic", cfg.Kafka.Topics.DocumentIngest)
	return nil
}

// runQuery opens the engine read-mostly and answers queries from stdin.
func runQuery(cfg *config.Config) error {
	eng, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(`quiver query prompt; "phrase: winter is coming" or free text, ^D to exit`)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var results engine.Results
		if rest, ok := strings.CutPrefix(line, "phrase:"); ok {
			results, err = eng.PhraseQuery(strings.Fields(rest))
		} else {
			results, err = eng.FreeTextQuery(strings.Fields(line))
		}
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		if results.Len() == 0 {
			fmt.Println("no matches")
			continue
		}
		for i, id := range results.DocIDs {
			fmt.Printf("%d. %s: %s\n", i+1, id, results.Snippets[i])
		}
	}
	return scanner.Err()
}

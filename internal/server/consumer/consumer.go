// Package consumer reads document-ingest events from Kafka and feeds them
// to the engine through the server's single write path.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quiverdb/quiver/internal/server"
	pkgerrors "github.com/quiverdb/quiver/pkg/errors"
	"github.com/quiverdb/quiver/pkg/kafka"
)

// IngestEvent is the wire format of a document-ingest message.
type IngestEvent struct {
	DocumentID  string    `json:"document_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	PublishedAt time.Time `json:"published_at"`
}

// IngestConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IngestConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IngestConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IngestConsumer {
	return &IngestConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "ingest-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is
// cancelled.
func (ic *IngestConsumer) Start(ctx context.Context) error {
	ic.logger.Info("ingest consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that indexes every ingest
// event through srv. Undecodable and invalid events are logged and
// dropped so a poison message cannot wedge the partition.
func HandleMessage(srv *server.Server) kafka.MessageHandler {
	logger := slog.Default().With("component", "ingest-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[IngestEvent](value)
		if err != nil {
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		req := server.IngestRequest{
			ID:    event.DocumentID,
			Title: event.Title,
			Body:  event.Body,
		}
		if req.ID == "" {
			req.ID = event.Title
		}
		if err := srv.IndexDocument(req); err != nil {
			if errors.Is(err, pkgerrors.ErrInvalidInput) {
				logger.Error("dropping invalid ingest event",
					"doc_id", req.ID,
					"error", err,
				)
				return nil
			}
			return err
		}
		logger.Info("document indexed", "doc_id", req.ID)
		return nil
	}
}

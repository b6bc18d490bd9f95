package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kiwi-insure/pkg/graph"
	"github.com/OFFIS-RIT/kiwi-insure/pkg/logger"
)

// IngestMsg is the body of an ingest_queue message. Either Text or
// ObjectKey must be set; Text wins when both are.
type IngestMsg struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text,omitempty"`
	ObjectKey  string `json:"object_key,omitempty"`
}

// DocumentSource loads document bodies referenced by ObjectKey.
type DocumentSource interface {
	GetDocument(ctx context.Context, key string) ([]byte, error)
}

// Processor runs documents through the pipeline.
type Processor interface {
	ProcessDocument(ctx context.Context, documentID, text string) (*graph.ProcessResult, error)
}

// ErrInvalidMessage marks messages that can never succeed. They are sent to
// the DLQ right away.
var ErrInvalidMessage = errors.New("invalid ingest message")

// PublishIngest enqueues msg on IngestQueue.
func PublishIngest(ctx context.Context, ch Publisher, msg IngestMsg) error {
	if err := msg.validate(); err != nil {
		return err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return PublishFIFO(ctx, ch, IngestQueue, body)
}

func (m IngestMsg) validate() error {
	if strings.TrimSpace(m.DocumentID) == "" {
		return fmt.Errorf("%w: document_id is required", ErrInvalidMessage)
	}
	if m.Text == "" && m.ObjectKey == "" {
		return fmt.Errorf("%w: text or object_key is required", ErrInvalidMessage)
	}
	return nil
}

// ProcessIngestMessage decodes body, loads the document and processes it.
func ProcessIngestMessage(
	ctx context.Context,
	src DocumentSource,
	p Processor,
	body []byte,
) (*graph.ProcessResult, error) {
	var msg IngestMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}

	text := msg.Text
	if text == "" {
		if src == nil {
			return nil, fmt.Errorf("%w: object_key given but no document source configured", ErrInvalidMessage)
		}
		data, err := src.GetDocument(ctx, msg.ObjectKey)
		if err != nil {
			return nil, err
		}
		text = string(data)
	}

	log := logger.With("document", msg.DocumentID)
	log.Info("[Queue] Processing ingest message", "object_key", msg.ObjectKey, "bytes", len(text))
	res, err := p.ProcessDocument(ctx, msg.DocumentID, text)
	if err != nil {
		var cerr *graph.ChunkingConfigurationError
		if errors.As(err, &cerr) {
			log.Error("[Queue] Unprocessable chunk configuration", "err", err)
			return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
		return res, err
	}
	if len(res.Skipped) > 0 {
		log.Warn("[Queue] Units skipped during extraction", "skipped", len(res.Skipped))
	}
	return res, nil
}

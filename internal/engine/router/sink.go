package router

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/recordgate/internal/engine/ids"
)

// Sink is an append-only destination for serialized records. Append must
// be safe for concurrent callers and atomic at record granularity: one
// call writes one whole record, never an interleaved fragment.
type Sink interface {
	Append(ctx context.Context, payload []byte) error
	Close() error
}

// FileSink appends JSONL records to a local file. A mutex plus a single
// Write call per record keeps concurrent lane appends from interleaving.
type FileSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewFileSink opens (or creates) the file in append-only mode.
func NewFileSink(path string) (*FileSink, error) {
	return openFileSink(path, os.O_APPEND)
}

// NewTruncatingFileSink recreates the file, discarding earlier contents.
// Batch runs use it so reruns start from empty outputs.
func NewTruncatingFileSink(path string) (*FileSink, error) {
	return openFileSink(path, os.O_TRUNC)
}

func openFileSink(path string, mode int) (*FileSink, error) {
	f, err := os.OpenFile(path, mode|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open sink %s: %w", path, err)
	}
	return &FileSink{path: path, f: f}, nil
}

// Path returns the sink's file path.
func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) Append(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line := make([]byte, 0, len(payload)+1)
	line = append(line, payload...)
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(line); err != nil {
		return fmt.Errorf("append to %s: %w", s.path, err)
	}
	return nil
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// PublisherSink routes records to a broker topic through a Watermill
// publisher. The publisher is shared infrastructure owned by the
// transport, so Close here is a no-op.
type PublisherSink struct {
	pub   message.Publisher
	topic string
}

func NewPublisherSink(pub message.Publisher, topic string) *PublisherSink {
	return &PublisherSink{pub: pub, topic: topic}
}

// Topic returns the destination topic.
func (s *PublisherSink) Topic() string {
	return s.topic
}

func (s *PublisherSink) Append(ctx context.Context, payload []byte) error {
	msg := message.NewMessage(ids.NewULID(), payload)
	msg.SetContext(ctx)
	return s.pub.Publish(s.topic, msg)
}

func (s *PublisherSink) Close() error {
	return nil
}

package transport

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/recordgate/internal/engine/errors"
	"github.com/drblury/recordgate/internal/engine/record"
)

// maxLineBytes caps a single NDJSON line; anything larger is upstream
// misuse rather than a record.
const maxLineBytes = 1 << 20

// FileSource reads newline-delimited payloads from a local file and
// serves them as raw records. Blank lines are skipped without counting.
// The line number becomes the record offset.
type FileSource struct {
	path    string
	f       *os.File
	scanner *bufio.Scanner
	line    int64
}

// NewFileSource opens the file for reading.
func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source %s: %w", path, err)
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	return &FileSource{path: path, f: f, scanner: scanner}, nil
}

// Next returns the next non-blank line, errors.ErrSourceExhausted at end
// of file, or the underlying read error.
func (s *FileSource) Next(ctx context.Context) (record.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return record.RawRecord{}, err
	}

	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" {
			continue
		}
		return record.RawRecord{
			Payload: []byte(text),
			Source: record.SourceInfo{
				Topic:  s.path,
				Offset: s.line,
			},
		}, nil
	}

	if err := s.scanner.Err(); err != nil {
		return record.RawRecord{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	return record.RawRecord{}, errors.ErrSourceExhausted
}

func (s *FileSource) Close() error {
	return s.f.Close()
}

// Metadata keys sources may attach to consumed messages.
const (
	MetadataPartition = "partition"
	MetadataKey       = "key"
	MetadataOffset    = "offset"
)

// SubscriberSource adapts a Watermill subscription channel into the
// pipeline's pull interface. Messages are acked when the following
// record is pulled (and on Close), keeping at-least-once semantics:
// a crash mid-record redelivers it.
type SubscriberSource struct {
	topic string
	ch    <-chan *message.Message

	mu      sync.Mutex
	pending *message.Message
	offset  int64
}

// NewSubscriberSource wraps an already-subscribed message channel.
func NewSubscriberSource(topic string, ch <-chan *message.Message) *SubscriberSource {
	return &SubscriberSource{topic: topic, ch: ch}
}

func (s *SubscriberSource) Next(ctx context.Context) (record.RawRecord, error) {
	s.ackPending()

	select {
	case <-ctx.Done():
		return record.RawRecord{}, ctx.Err()
	case msg, ok := <-s.ch:
		if !ok {
			return record.RawRecord{}, errors.ErrSourceExhausted
		}

		s.mu.Lock()
		s.pending = msg
		s.offset++
		offset := s.offset
		s.mu.Unlock()

		return record.RawRecord{
			Payload: msg.Payload,
			Source: record.SourceInfo{
				Topic:     s.topic,
				Partition: msg.Metadata.Get(MetadataPartition),
				Key:       msg.Metadata.Get(MetadataKey),
				Offset:    offset,
			},
		}, nil
	}
}

func (s *SubscriberSource) ackPending() {
	s.mu.Lock()
	msg := s.pending
	s.pending = nil
	s.mu.Unlock()

	if msg != nil {
		msg.Ack()
	}
}

func (s *SubscriberSource) Close() error {
	s.ackPending()
	return nil
}

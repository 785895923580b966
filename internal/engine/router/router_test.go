package router

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	engineerrors "github.com/drblury/recordgate/internal/engine/errors"
	"github.com/drblury/recordgate/internal/engine/jsoncodec"
	"github.com/drblury/recordgate/internal/engine/record"
)

type memorySink struct {
	lines [][]byte
	err   error
}

func (s *memorySink) Append(_ context.Context, payload []byte) error {
	if s.err != nil {
		return s.err
	}
	s.lines = append(s.lines, payload)
	return nil
}

func (s *memorySink) Close() error { return nil }

func fullSinkSet(mode Mode) (map[Destination]Sink, map[Destination]*memorySink) {
	sinks := make(map[Destination]Sink)
	mems := make(map[Destination]*memorySink)
	for _, dest := range Destinations(mode) {
		mem := &memorySink{}
		sinks[dest] = mem
		mems[dest] = mem
	}
	return sinks, mems
}

func decodeVerdict(t *testing.T, payload string) record.Verdict {
	t.Helper()
	raw := record.RawRecord{Payload: []byte(payload)}
	parsed, serr := record.Decode(raw)
	if serr != nil {
		return record.InvalidVerdict(raw, nil, serr)
	}
	return record.ValidVerdict(raw, parsed)
}

func TestNewRequiresTotalSinkMapping(t *testing.T) {
	sinks, _ := fullSinkSet(SplitByReason)
	delete(sinks, InvalidDestination(record.ReasonTypeMismatch))

	if _, err := New(SplitByReason, sinks); !errors.Is(err, engineerrors.ErrSinkRequired) {
		t.Fatalf("expected sink required error, got %v", err)
	}
}

func TestDestinationMappingIsTotalAndDeterministic(t *testing.T) {
	sinks, _ := fullSinkSet(SplitByReason)
	r, err := New(SplitByReason, sinks)
	if err != nil {
		t.Fatal(err)
	}

	valid := decodeVerdict(t, `{"ok":true}`)
	if got := r.DestinationFor(valid); got != DestinationValid {
		t.Fatalf("expected valid destination, got %s", got)
	}

	for _, reason := range record.Reasons() {
		v := record.InvalidVerdict(record.RawRecord{}, nil, &record.StageError{Reason: reason, Detail: "x"})
		first := r.DestinationFor(v)
		second := r.DestinationFor(v)
		if first != second {
			t.Fatalf("destination not deterministic for %s", reason)
		}
		if first != InvalidDestination(reason) {
			t.Fatalf("expected %s, got %s", InvalidDestination(reason), first)
		}
	}
}

func TestSingleDeadLetterMerges(t *testing.T) {
	sinks, mems := fullSinkSet(SingleDeadLetter)
	r, err := New(SingleDeadLetter, sinks)
	if err != nil {
		t.Fatal(err)
	}

	for _, reason := range record.Reasons() {
		v := record.InvalidVerdict(record.RawRecord{Payload: []byte("x")}, nil, &record.StageError{Reason: reason, Detail: "d"})
		if _, err := r.Route(context.Background(), v); err != nil {
			t.Fatalf("route failed: %v", err)
		}
	}

	if got := len(mems[DestinationDeadLetter].lines); got != len(record.Reasons()) {
		t.Fatalf("expected all invalids merged, got %d lines", got)
	}
}

func TestRouteWritesValidRecordAsIs(t *testing.T) {
	sinks, mems := fullSinkSet(SplitByReason)
	r, _ := New(SplitByReason, sinks)

	v := decodeVerdict(t, `{"flight":"AB1","duration":45,"origin":"JFK"}`)
	dest, err := r.Route(context.Background(), v)
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if dest != DestinationValid {
		t.Fatalf("expected valid destination, got %s", dest)
	}

	var got map[string]any
	if err := jsoncodec.Unmarshal(mems[DestinationValid].lines[0], &got); err != nil {
		t.Fatalf("valid sink does not hold JSON: %v", err)
	}
	if got["flight"] != "AB1" || got["origin"] != "JFK" {
		t.Fatalf("unexpected valid payload: %#v", got)
	}
}

func TestRouteWrapsInvalidRecordInEnvelope(t *testing.T) {
	sinks, mems := fullSinkSet(SplitByReason)
	r, _ := New(SplitByReason, sinks)

	raw := record.RawRecord{
		Payload: []byte(`{"flight":"AB1","duration":"45","origin":"JFK"}`),
		Source:  record.SourceInfo{Topic: "flights.jsonl", Offset: 12},
	}
	parsed, _ := record.Decode(raw)
	v := record.InvalidVerdict(raw, parsed, &record.StageError{
		Reason: record.ReasonTypeMismatch,
		Detail: `field "duration": expected int, got string`,
	})

	if _, err := r.Route(context.Background(), v); err != nil {
		t.Fatalf("route failed: %v", err)
	}

	line := mems[InvalidDestination(record.ReasonTypeMismatch)].lines[0]
	var env struct {
		OriginalPayload map[string]any `json:"original_payload"`
		Reason          string         `json:"reason"`
		Detail          string         `json:"detail"`
		Source          *struct {
			Topic  string `json:"topic"`
			Offset int64  `json:"offset"`
		} `json:"source"`
	}
	if err := jsoncodec.Unmarshal(line, &env); err != nil {
		t.Fatalf("envelope is not JSON: %v", err)
	}
	if env.Reason != "type_mismatch" {
		t.Fatalf("expected reason type_mismatch, got %s", env.Reason)
	}
	if !strings.Contains(env.Detail, "duration") {
		t.Fatalf("expected detail naming field, got %q", env.Detail)
	}
	if env.OriginalPayload["flight"] != "AB1" {
		t.Fatalf("expected original payload preserved, got %#v", env.OriginalPayload)
	}
	if env.Source == nil || env.Source.Offset != 12 {
		t.Fatalf("expected source metadata, got %#v", env.Source)
	}
}

func TestRouteKeepsRawTextForDecodeFailures(t *testing.T) {
	sinks, mems := fullSinkSet(SplitByReason)
	r, _ := New(SplitByReason, sinks)

	v := decodeVerdict(t, `{"flight":`)
	if _, err := r.Route(context.Background(), v); err != nil {
		t.Fatalf("route failed: %v", err)
	}

	line := mems[InvalidDestination(record.ReasonDecodeError)].lines[0]
	var env struct {
		OriginalPayload string `json:"original_payload"`
		Reason          string `json:"reason"`
	}
	if err := jsoncodec.Unmarshal(line, &env); err != nil {
		t.Fatal(err)
	}
	if env.OriginalPayload != `{"flight":` {
		t.Fatalf("expected raw text preserved, got %q", env.OriginalPayload)
	}
}

func TestRouteReportsSinkWriteError(t *testing.T) {
	sinks, mems := fullSinkSet(SplitByReason)
	mems[DestinationValid].err = errors.New("disk full")
	r, _ := New(SplitByReason, sinks)

	_, err := r.Route(context.Background(), decodeVerdict(t, `{"ok":true}`))
	var sinkErr *SinkWriteError
	if !errors.As(err, &sinkErr) {
		t.Fatalf("expected SinkWriteError, got %v", err)
	}
	if sinkErr.Destination != DestinationValid {
		t.Fatalf("expected valid destination in error, got %s", sinkErr.Destination)
	}
}

func TestFileSinkAppendsOneLinePerRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valid.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := sink.Append(context.Background(), []byte(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(context.Background(), []byte(`{"b":2}`)); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 || lines[0] != `{"a":1}` || lines[1] != `{"b":2}` {
		t.Fatalf("unexpected sink contents: %q", string(data))
	}
}

func TestFileSinkAppendsToExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valid.jsonl")
	if err := os.WriteFile(path, []byte("{\"old\":1}\n"), 0600); err != nil {
		t.Fatal(err)
	}

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(context.Background(), []byte(`{"new":2}`)); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\"old\":1}\n{\"new\":2}\n" {
		t.Fatalf("expected append to keep earlier records, got %q", data)
	}
}

func TestTruncatingFileSinkDiscardsStaleRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "valid.jsonl")
	if err := os.WriteFile(path, []byte("{\"stale\":1}\n{\"stale\":2}\n"), 0600); err != nil {
		t.Fatal(err)
	}

	sink, err := NewTruncatingFileSink(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Append(context.Background(), []byte(`{"fresh":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\"fresh\":1}\n" {
		t.Fatalf("expected rerun to replace stale records, got %q", data)
	}
}

func TestFileSinkConcurrentAppendsDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concurrent.jsonl")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatal(err)
	}

	const writers = 8
	const perWriter = 50
	done := make(chan struct{})
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			payload := []byte(`{"writer":` + strings.Repeat("9", w+1) + `}`)
			for i := 0; i < perWriter; i++ {
				if err := sink.Append(context.Background(), payload); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	for w := 0; w < writers; w++ {
		<-done
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != writers*perWriter {
		t.Fatalf("expected %d lines, got %d", writers*perWriter, len(lines))
	}
	for _, line := range lines {
		var v map[string]any
		if err := jsoncodec.Unmarshal([]byte(line), &v); err != nil {
			t.Fatalf("interleaved record %q: %v", line, err)
		}
	}
}

func TestRouterCloseClosesEverySinkOnce(t *testing.T) {
	closes := 0
	sink := &countingSink{closes: &closes}
	sinks := map[Destination]Sink{DestinationValid: sink, DestinationDeadLetter: sink}

	r, err := New(SingleDeadLetter, sinks)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if closes != 1 {
		t.Fatalf("expected shared sink closed once, got %d", closes)
	}
}

type countingSink struct {
	closes *int
}

func (s *countingSink) Append(context.Context, []byte) error { return nil }
func (s *countingSink) Close() error {
	*s.closes++
	return nil
}

package recordgate_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"

	recordgate "github.com/drblury/recordgate"
)

const apiTestSchema = `
fields:
  - name: flight
    type: string
    required: true
  - name: duration
    type: int
    required: true
  - name: origin
    type: string
    required: true
`

const apiTestRules = `
rules:
  - name: duration_positive
    field: duration
    min: 0
`

const apiTestInput = `{"flight":"AB1","duration":45,"origin":"JFK"}
{"flight":"AB2","duration":50}
{"flight":"AB3","duration":"45","origin":"LAX"}
{"flight":

{"flight":"AB4","duration":-5,"origin":"SFO"}
`

func TestFileToFileRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "flights_summary.json")
	if err := os.WriteFile(input, []byte(apiTestInput), 0600); err != nil {
		t.Fatal(err)
	}

	desc, err := recordgate.ParseSchema([]byte(apiTestSchema))
	if err != nil {
		t.Fatal(err)
	}
	eng, err := recordgate.ParseRules([]byte(apiTestRules))
	if err != nil {
		t.Fatal(err)
	}

	sinks := make(map[recordgate.Destination]recordgate.Sink)
	for _, dest := range recordgate.RoutingDestinations(recordgate.SplitByReason) {
		sink, err := recordgate.NewFileSink(filepath.Join(dir, string(dest)+".jsonl"))
		if err != nil {
			t.Fatal(err)
		}
		sinks[dest] = sink
	}
	router, err := recordgate.NewRouter(recordgate.SplitByReason, sinks)
	if err != nil {
		t.Fatal(err)
	}

	pipe, err := recordgate.NewPipeline(recordgate.PipelineOptions{
		Schema: desc,
		Rules:  eng,
		Router: router,
		Logger: recordgate.NewWatermillServiceLogger(watermill.NopLogger{}),
	})
	if err != nil {
		t.Fatal(err)
	}

	src, err := recordgate.NewFileSource(input)
	if err != nil {
		t.Fatal(err)
	}

	counters, err := pipe.Run(context.Background(), src)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Five non-blank lines: one valid, four invalid for distinct reasons.
	if counters.Received != 5 || counters.Valid != 1 || counters.Invalid() != 4 {
		t.Fatalf("unexpected totals: received=%d valid=%d invalid=%d",
			counters.Received, counters.Valid, counters.Invalid())
	}

	valid, err := os.ReadFile(filepath.Join(dir, string(recordgate.DestinationValid)+".jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(valid), `"flight":"AB1"`) {
		t.Fatalf("expected valid flight in output, got %s", valid)
	}

	for _, reason := range recordgate.Reasons() {
		dest := recordgate.InvalidDestination(reason)
		data, err := os.ReadFile(filepath.Join(dir, string(dest)+".jsonl"))
		if err != nil {
			t.Fatal(err)
		}
		lines := strings.Count(string(data), "\n")
		if lines != 1 {
			t.Fatalf("destination %s: expected 1 record, got %d", dest, lines)
		}
		if !strings.Contains(string(data), `"reason":"`+string(reason)+`"`) {
			t.Fatalf("destination %s: envelope missing reason, got %s", dest, data)
		}
	}
}

func TestValidateConfigSurface(t *testing.T) {
	cfg := &recordgate.Config{
		Transport:     "file",
		InputFile:     "in.jsonl",
		SchemaFile:    "schema.yaml",
		ValidOutput:   "valid.jsonl",
		InvalidOutput: "invalid.jsonl",
	}
	if err := recordgate.ValidateConfig(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if err := recordgate.ValidateConfig(&recordgate.Config{}); err == nil {
		t.Fatal("expected empty config rejection")
	}
}

func TestDecodeRecordSurface(t *testing.T) {
	parsed, serr := recordgate.DecodeRecord(recordgate.RawRecord{Payload: []byte(`{"a":1}`)})
	if serr != nil {
		t.Fatalf("decode failed: %v", serr)
	}
	if parsed == nil || parsed.Root == nil {
		t.Fatal("expected parsed tree")
	}

	_, serr = recordgate.DecodeRecord(recordgate.RawRecord{Payload: []byte(`nope`)})
	if serr == nil || serr.Reason != recordgate.ReasonDecodeError {
		t.Fatalf("expected decode error, got %v", serr)
	}
}

func TestSentinelErrorsSurface(t *testing.T) {
	_, err := recordgate.NewPipeline(recordgate.PipelineOptions{})
	if !errors.Is(err, recordgate.ErrSchemaRequired) {
		t.Fatalf("expected schema sentinel, got %v", err)
	}
}

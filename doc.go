// Package recordgate is a streaming record validation and routing engine.
// It consumes newline-delimited JSON records from a source, validates each
// against a declared schema and an ordered list of semantic rules, and
// routes every record to exactly one destination: the valid sink, or a
// dead-letter sink keyed by failure reason. Malformed input never stops
// the run; per-record failures become routed verdicts, while sink and
// source failures end the run after a clean drain.
//
// The pipeline is organised as four stages with one coordinator:
//
//   - Decoder: raw bytes into a tagged value tree (never faults)
//   - Schema validator: required fields, types, nullability, strictness
//   - Rule engine: ranges, enumerations, cross-field comparisons
//   - Router: verdict to sink, one append per record
//
// The coordinator runs the stages across concurrent lanes. Records
// sharing a partition key stay on one lane in arrival order, so per-key
// consistency rules remain meaningful; per-lane counters merge at drain
// and always satisfy received == valid + invalid.
//
// # Sources and sinks
//
// The default source is a local NDJSON file, matching the bundled CLI.
// Broker sources (kafka, nats, rabbitmq, in-memory channel) plug in via
// the transport registry; sinks are append-only JSONL files or broker
// topics. A stable envelope {original_payload, reason, detail} preserves
// invalid records for inspection.
//
// A minimal setup loads a schema.Descriptor, builds a router over file
// sinks, constructs a Pipeline, and calls Run with a source; the
// cmd/recordgate CLI is a thin wrapper over exactly that sequence.
package recordgate

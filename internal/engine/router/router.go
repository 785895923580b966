// Package router maps validation verdicts to destination sinks. The
// mapping is total and fixed: valid records go to the valid sink, invalid
// records to a dead-letter sink keyed by failure reason (or a single
// merged dead-letter sink, depending on the configured mode).
package router

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/drblury/recordgate/internal/engine/errors"
	"github.com/drblury/recordgate/internal/engine/jsoncodec"
	"github.com/drblury/recordgate/internal/engine/record"
)

// Mode selects how invalid records are sub-routed.
type Mode int

const (
	// SplitByReason gives each failure reason its own dead-letter sink.
	// This is the default.
	SplitByReason Mode = iota

	// SingleDeadLetter merges all invalid records into one sink.
	SingleDeadLetter
)

func (m Mode) String() string {
	switch m {
	case SplitByReason:
		return "split_by_reason"
	case SingleDeadLetter:
		return "single_dead_letter"
	}
	return "unknown"
}

// Destination identifies a routing target.
type Destination string

const (
	DestinationValid      Destination = "valid"
	DestinationDeadLetter Destination = "dead_letter"
)

// InvalidDestination derives the per-reason destination identifier.
func InvalidDestination(reason record.FailureReason) Destination {
	return Destination("invalid_" + string(reason))
}

// Destinations enumerates every destination reachable under a mode, in a
// fixed order. Router construction uses it to verify the sink mapping is
// total before any record flows.
func Destinations(mode Mode) []Destination {
	out := []Destination{DestinationValid}
	if mode == SingleDeadLetter {
		return append(out, DestinationDeadLetter)
	}
	for _, reason := range record.Reasons() {
		out = append(out, InvalidDestination(reason))
	}
	return out
}

// SinkWriteError reports a failed append. It is fatal to the run: the
// coordinator drains and shuts down rather than retrying.
type SinkWriteError struct {
	Destination Destination
	Err         error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("sink write to %s failed: %v", e.Destination, e.Err)
}

func (e *SinkWriteError) Unwrap() error {
	return e.Err
}

// invalidEnvelope is the stable wire shape for dead-letter records. The
// original payload rides along so the input can be reconstructed.
type invalidEnvelope struct {
	OriginalPayload any                  `json:"original_payload"`
	Reason          record.FailureReason `json:"reason"`
	Detail          string               `json:"detail"`
	Source          *record.SourceInfo   `json:"source,omitempty"`
}

// Router dispatches verdicts to sinks.
type Router struct {
	mode  Mode
	sinks map[Destination]Sink
}

// New builds a router and verifies a sink exists for every destination
// the mode can produce.
func New(mode Mode, sinks map[Destination]Sink) (*Router, error) {
	var missing []error
	for _, dest := range Destinations(mode) {
		if sinks[dest] == nil {
			missing = append(missing, fmt.Errorf("%w: %s", errors.ErrSinkRequired, dest))
		}
	}
	if len(missing) > 0 {
		return nil, stderrors.Join(missing...)
	}
	return &Router{mode: mode, sinks: sinks}, nil
}

// Mode returns the configured invalid-routing mode.
func (r *Router) Mode() Mode {
	return r.mode
}

// DestinationFor resolves a verdict to its destination. Same verdict,
// same destination, every run.
func (r *Router) DestinationFor(v record.Verdict) Destination {
	if v.IsValid() {
		return DestinationValid
	}
	if r.mode == SingleDeadLetter {
		return DestinationDeadLetter
	}
	return InvalidDestination(v.Reason)
}

// Route serializes the verdict and performs exactly one sink append.
// Valid records are written as the parsed record itself; invalid records
// as an envelope carrying the original payload, reason, and detail.
func (r *Router) Route(ctx context.Context, v record.Verdict) (Destination, error) {
	dest := r.DestinationFor(v)

	payload, err := r.encode(v)
	if err != nil {
		return dest, &SinkWriteError{Destination: dest, Err: err}
	}
	if err := r.sinks[dest].Append(ctx, payload); err != nil {
		return dest, &SinkWriteError{Destination: dest, Err: err}
	}
	return dest, nil
}

func (r *Router) encode(v record.Verdict) ([]byte, error) {
	if v.IsValid() {
		return jsoncodec.Marshal(v.Parsed.Root.Interface())
	}

	env := invalidEnvelope{
		Reason: v.Reason,
		Detail: v.Detail,
	}
	if v.Parsed != nil {
		env.OriginalPayload = v.Parsed.Root.Interface()
	} else {
		// Decode failures have no tree; keep the raw text.
		env.OriginalPayload = string(v.Raw.Payload)
	}
	if v.Raw.Source != (record.SourceInfo{}) {
		src := v.Raw.Source
		env.Source = &src
	}
	return jsoncodec.Marshal(env)
}

// Close closes every sink once, joining errors. Sinks shared between
// destinations (not the usual setup) are closed once per destination
// entry pointing at a distinct Sink value.
func (r *Router) Close() error {
	closed := make(map[Sink]bool, len(r.sinks))
	var errs []error
	for _, dest := range Destinations(r.mode) {
		sink := r.sinks[dest]
		if closed[sink] {
			continue
		}
		closed[sink] = true
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Package record defines the data model flowing through the validation
// pipeline: raw payloads pulled from a source, the parsed value tree
// produced by the decoder, and the verdict attached to every record.
package record

import (
	"encoding/json"
	"strings"
)

// FailureReason is the closed set of per-record failure classifications.
// It doubles as the routing key for invalid records.
type FailureReason string

const (
	ReasonDecodeError       FailureReason = "decode_error"
	ReasonSchemaViolation   FailureReason = "schema_violation"
	ReasonTypeMismatch      FailureReason = "type_mismatch"
	ReasonSemanticViolation FailureReason = "semantic_violation"
)

// Reasons returns every failure reason in a fixed order. Routers use this
// to build the total destination mapping up front.
func Reasons() []FailureReason {
	return []FailureReason{
		ReasonDecodeError,
		ReasonSchemaViolation,
		ReasonTypeMismatch,
		ReasonSemanticViolation,
	}
}

// Known reports whether r is a member of the closed reason set.
func (r FailureReason) Known() bool {
	switch r {
	case ReasonDecodeError, ReasonSchemaViolation, ReasonTypeMismatch, ReasonSemanticViolation:
		return true
	}
	return false
}

// SourceInfo carries the metadata a source attaches to a raw payload.
type SourceInfo struct {
	Topic     string `json:"topic,omitempty"`
	Partition string `json:"partition,omitempty"`
	Key       string `json:"key,omitempty"`
	Offset    int64  `json:"offset,omitempty"`
}

// RawRecord is one opaque payload pulled from a source. It is immutable
// once read; stages hand it along untouched so invalid records can be
// written out with their original bytes.
type RawRecord struct {
	Payload []byte
	Source  SourceInfo
}

// StageError is the recoverable failure a pipeline stage reports for a
// single record. It is a value, not control flow: the coordinator turns
// it into a routed verdict and moves on.
type StageError struct {
	Reason FailureReason
	Detail string
}

func (e *StageError) Error() string {
	return string(e.Reason) + ": " + e.Detail
}

// Kind tags a node in the parsed value tree.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return "unknown"
}

// Node is one value in the parsed record tree. Exactly the fields
// matching Kind are meaningful; the rest stay zero.
type Node struct {
	Kind   Kind
	Bool   bool
	Number json.Number
	Str    string
	Fields map[string]*Node
	Items  []*Node
}

// Field returns the named child of an object node.
func (n *Node) Field(name string) (*Node, bool) {
	if n == nil || n.Kind != KindObject {
		return nil, false
	}
	child, ok := n.Fields[name]
	return child, ok
}

// IsNull reports whether the node holds JSON null.
func (n *Node) IsNull() bool {
	return n == nil || n.Kind == KindNull
}

// Int parses an integer out of a number node. The second return is false
// for non-number nodes and for numbers with a fractional part.
func (n *Node) Int() (int64, bool) {
	if n == nil || n.Kind != KindNumber {
		return 0, false
	}
	v, err := n.Number.Int64()
	if err != nil {
		return 0, false
	}
	return v, true
}

// Float returns the numeric value of a number node.
func (n *Node) Float() (float64, bool) {
	if n == nil || n.Kind != KindNumber {
		return 0, false
	}
	v, err := n.Number.Float64()
	if err != nil {
		return 0, false
	}
	return v, true
}

// Interface converts the node tree back into the generic representation
// the JSON codec understands. Numbers stay json.Number so re-encoding
// preserves the exact source notation.
func (n *Node) Interface() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindNull:
		return nil
	case KindBool:
		return n.Bool
	case KindNumber:
		return n.Number
	case KindString:
		return n.Str
	case KindObject:
		out := make(map[string]any, len(n.Fields))
		for name, child := range n.Fields {
			out[name] = child.Interface()
		}
		return out
	case KindArray:
		out := make([]any, len(n.Items))
		for i, item := range n.Items {
			out[i] = item.Interface()
		}
		return out
	}
	return nil
}

// Lookup resolves a dot-separated path ("legs.0" is not supported; paths
// address object fields only) against the tree.
func Lookup(root *Node, path string) (*Node, bool) {
	node := root
	for _, part := range strings.Split(path, ".") {
		child, ok := node.Field(part)
		if !ok {
			return nil, false
		}
		node = child
	}
	return node, true
}

// ParsedRecord is the structured value produced by a successful decode.
// Ownership follows the pipeline: the stage holding it hands it to the
// next stage and never touches it again.
type ParsedRecord struct {
	Root *Node
}

// Verdict is the single terminal classification of one input record.
// A zero Reason means valid.
type Verdict struct {
	Raw    RawRecord
	Parsed *ParsedRecord
	Reason FailureReason
	Detail string
}

// IsValid reports whether the record passed every stage.
func (v Verdict) IsValid() bool {
	return v.Reason == ""
}

// ValidVerdict marks a record as having passed decode, schema, and rules.
func ValidVerdict(raw RawRecord, parsed *ParsedRecord) Verdict {
	return Verdict{Raw: raw, Parsed: parsed}
}

// InvalidVerdict attaches a stage failure to a record. Parsed may be nil
// when the failure happened before decoding completed.
func InvalidVerdict(raw RawRecord, parsed *ParsedRecord, err *StageError) Verdict {
	return Verdict{Raw: raw, Parsed: parsed, Reason: err.Reason, Detail: err.Detail}
}

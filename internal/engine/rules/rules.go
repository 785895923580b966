// Package rules applies semantic checks to schema-valid records: numeric
// ranges, enumerated values, non-empty strings, and cross-field
// comparisons. Rules are declared in YAML, evaluated in declared order,
// and the first violation wins.
package rules

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/drblury/recordgate/internal/engine/record"
)

// Op names a comparison operator for cross-field rules.
type Op string

const (
	OpLT Op = "lt"
	OpLE Op = "le"
	OpEQ Op = "eq"
	OpGE Op = "ge"
	OpGT Op = "gt"
)

func (o Op) known() bool {
	switch o {
	case OpLT, OpLE, OpEQ, OpGE, OpGT:
		return true
	}
	return false
}

// Comparison relates two fields of the same record, e.g. departure le arrival.
type Comparison struct {
	Left  string `yaml:"left"`
	Op    Op     `yaml:"op"`
	Right string `yaml:"right"`
}

// Rule is one declared check. Exactly one check group must be set:
// a field check (Min/Max, In, or NonEmpty on Field) or a Compare.
// Rules are pure functions of the record; a rule whose field is absent
// or null is skipped, since presence is the schema's concern.
type Rule struct {
	Name     string      `yaml:"name"`
	Field    string      `yaml:"field,omitempty"`
	Min      *float64    `yaml:"min,omitempty"`
	Max      *float64    `yaml:"max,omitempty"`
	In       []string    `yaml:"in,omitempty"`
	NonEmpty bool        `yaml:"non_empty,omitempty"`
	Compare  *Comparison `yaml:"compare,omitempty"`
}

// Engine holds an ordered rule list.
type Engine struct {
	rules []Rule
}

// NewEngine wraps an already-validated rule slice. A nil slice yields an
// engine that accepts every record.
func NewEngine(list []Rule) *Engine {
	return &Engine{rules: list}
}

// Len returns the number of declared rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Load reads and parses a rule list from a YAML file.
func Load(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML rules document and verifies every rule is well formed.
func Parse(data []byte) (*Engine, error) {
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	var errs []error
	for i, r := range doc.Rules {
		errs = append(errs, checkRule(i, r)...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return NewEngine(doc.Rules), nil
}

func checkRule(index int, r Rule) []error {
	var errs []error
	if r.Name == "" {
		errs = append(errs, fmt.Errorf("rule %d: name is required", index))
	}

	hasFieldCheck := r.Min != nil || r.Max != nil || len(r.In) > 0 || r.NonEmpty
	switch {
	case r.Compare != nil:
		if hasFieldCheck || r.Field != "" {
			errs = append(errs, fmt.Errorf("rule %q: compare cannot be combined with field checks", r.Name))
		}
		if r.Compare.Left == "" || r.Compare.Right == "" {
			errs = append(errs, fmt.Errorf("rule %q: compare needs both left and right fields", r.Name))
		}
		if !r.Compare.Op.known() {
			errs = append(errs, fmt.Errorf("rule %q: unknown comparison op %q", r.Name, r.Compare.Op))
		}
	case hasFieldCheck:
		if r.Field == "" {
			errs = append(errs, fmt.Errorf("rule %q: field is required", r.Name))
		}
	default:
		errs = append(errs, fmt.Errorf("rule %q: declares no check", r.Name))
	}
	return errs
}

// Evaluate runs the rules in declared order and returns the first
// violation, or nil when the record passes all of them.
func (e *Engine) Evaluate(root *record.Node) *record.StageError {
	for _, r := range e.rules {
		if detail := r.evaluate(root); detail != "" {
			return &record.StageError{Reason: record.ReasonSemanticViolation, Detail: detail}
		}
	}
	return nil
}

// evaluate returns an empty string when the rule passes or is skipped.
func (r Rule) evaluate(root *record.Node) string {
	if r.Compare != nil {
		return r.evaluateCompare(root)
	}

	node, ok := record.Lookup(root, r.Field)
	if !ok || node.IsNull() {
		return ""
	}

	if r.Min != nil || r.Max != nil {
		v, ok := node.Float()
		if !ok {
			return fmt.Sprintf("rule %q: field %q is not numeric", r.Name, r.Field)
		}
		if r.Min != nil && v < *r.Min {
			return fmt.Sprintf("rule %q: field %q value %s below minimum %v", r.Name, r.Field, node.Number, *r.Min)
		}
		if r.Max != nil && v > *r.Max {
			return fmt.Sprintf("rule %q: field %q value %s above maximum %v", r.Name, r.Field, node.Number, *r.Max)
		}
	}

	if len(r.In) > 0 {
		text, ok := textValue(node)
		if !ok {
			return fmt.Sprintf("rule %q: field %q has no comparable value", r.Name, r.Field)
		}
		if !contains(r.In, text) {
			return fmt.Sprintf("rule %q: field %q value %q not in allowed set", r.Name, r.Field, text)
		}
	}

	if r.NonEmpty {
		if node.Kind != record.KindString {
			return fmt.Sprintf("rule %q: field %q is not a string", r.Name, r.Field)
		}
		if node.Str == "" {
			return fmt.Sprintf("rule %q: field %q is empty", r.Name, r.Field)
		}
	}

	return ""
}

func (r Rule) evaluateCompare(root *record.Node) string {
	c := r.Compare
	left, okL := record.Lookup(root, c.Left)
	right, okR := record.Lookup(root, c.Right)
	if !okL || !okR || left.IsNull() || right.IsNull() {
		return ""
	}

	cmp, ok := compareNodes(left, right)
	if !ok {
		return fmt.Sprintf("rule %q: fields %q and %q are not comparable", r.Name, c.Left, c.Right)
	}

	holds := false
	switch c.Op {
	case OpLT:
		holds = cmp < 0
	case OpLE:
		holds = cmp <= 0
	case OpEQ:
		holds = cmp == 0
	case OpGE:
		holds = cmp >= 0
	case OpGT:
		holds = cmp > 0
	}
	if !holds {
		return fmt.Sprintf("rule %q: %q %s %q does not hold (%s vs %s)",
			r.Name, c.Left, c.Op, c.Right, describeValue(left), describeValue(right))
	}
	return ""
}

// compareNodes orders two scalar nodes: numerically when both are
// numbers, lexically when both are strings.
func compareNodes(left, right *record.Node) (int, bool) {
	if left.Kind == record.KindNumber && right.Kind == record.KindNumber {
		l, okL := left.Float()
		r, okR := right.Float()
		if !okL || !okR {
			return 0, false
		}
		switch {
		case l < r:
			return -1, true
		case l > r:
			return 1, true
		}
		return 0, true
	}
	if left.Kind == record.KindString && right.Kind == record.KindString {
		switch {
		case left.Str < right.Str:
			return -1, true
		case left.Str > right.Str:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func textValue(node *record.Node) (string, bool) {
	switch node.Kind {
	case record.KindString:
		return node.Str, true
	case record.KindNumber:
		return node.Number.String(), true
	case record.KindBool:
		return strconv.FormatBool(node.Bool), true
	}
	return "", false
}

func describeValue(node *record.Node) string {
	text, ok := textValue(node)
	if !ok {
		return node.Kind.String()
	}
	return text
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

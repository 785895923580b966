package schema

import (
	"fmt"
	"sort"

	"github.com/drblury/recordgate/internal/engine/record"
)

// Validate checks a parsed record tree against the descriptor. Checks run
// in two passes, each short-circuiting on the first failure: required
// field presence first, then declared types and nullability. Strict
// schemas additionally reject undeclared fields.
func (d *Descriptor) Validate(root *record.Node) *record.StageError {
	if err := checkPresence(d.Fields, root, ""); err != nil {
		return err
	}
	if err := checkTypes(d.Fields, root, ""); err != nil {
		return err
	}
	if d.Strict {
		return checkUndeclared(d.Fields, root, "")
	}
	return nil
}

func checkPresence(fields []Field, node *record.Node, prefix string) *record.StageError {
	for _, f := range fields {
		path := joinPath(prefix, f.Name)
		child, ok := node.Field(f.Name)
		if !ok {
			if f.Required {
				return &record.StageError{
					Reason: record.ReasonSchemaViolation,
					Detail: fmt.Sprintf("missing required field %q", path),
				}
			}
			continue
		}
		// Nested presence is only checkable when the parent really is an
		// object; a wrong parent kind is reported by the type pass.
		if f.Type == TypeObject && child.Kind == record.KindObject {
			if err := checkPresence(f.Fields, child, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkTypes(fields []Field, node *record.Node, prefix string) *record.StageError {
	for _, f := range fields {
		path := joinPath(prefix, f.Name)
		child, ok := node.Field(f.Name)
		if !ok {
			continue
		}

		if child.Kind == record.KindNull {
			if f.Nullable {
				continue
			}
			return typeMismatch(path, f.Type, "null")
		}

		if !kindMatches(f.Type, child) {
			return typeMismatch(path, f.Type, describe(child))
		}

		if f.Type == TypeObject {
			if err := checkTypes(f.Fields, child, path); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkUndeclared(fields []Field, node *record.Node, prefix string) *record.StageError {
	declared := make(map[string]Field, len(fields))
	for _, f := range fields {
		declared[f.Name] = f
	}

	// Sorted iteration keeps the reported field stable across runs when a
	// record carries several undeclared fields.
	names := make([]string, 0, len(node.Fields))
	for name := range node.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		child := node.Fields[name]
		f, ok := declared[name]
		if !ok {
			return &record.StageError{
				Reason: record.ReasonSchemaViolation,
				Detail: fmt.Sprintf("field %q is not declared by the strict schema", joinPath(prefix, name)),
			}
		}
		if f.Type == TypeObject && child.Kind == record.KindObject {
			if err := checkUndeclared(f.Fields, child, joinPath(prefix, name)); err != nil {
				return err
			}
		}
	}
	return nil
}

func kindMatches(t FieldType, node *record.Node) bool {
	switch t {
	case TypeString:
		return node.Kind == record.KindString
	case TypeInt:
		_, ok := node.Int()
		return ok
	case TypeFloat, TypeNumber:
		return node.Kind == record.KindNumber
	case TypeBool:
		return node.Kind == record.KindBool
	case TypeObject:
		return node.Kind == record.KindObject
	case TypeArray:
		return node.Kind == record.KindArray
	}
	return false
}

// describe names the actual kind for a mismatch detail, splitting numbers
// into int and float so "expected int, got float" reads correctly.
func describe(node *record.Node) string {
	if node.Kind == record.KindNumber {
		if _, ok := node.Int(); ok {
			return "int"
		}
		return "float"
	}
	return node.Kind.String()
}

func typeMismatch(path string, expected FieldType, actual string) *record.StageError {
	return &record.StageError{
		Reason: record.ReasonTypeMismatch,
		Detail: fmt.Sprintf("field %q: expected %s, got %s", path, expected, actual),
	}
}

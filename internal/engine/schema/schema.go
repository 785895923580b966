// Package schema declares the record shape the pipeline validates
// against. A Descriptor is loaded once at startup from a YAML file and
// treated as read-only shared state from then on.
package schema

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldType is the declared type of a schema field.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeNumber FieldType = "number"
	TypeBool   FieldType = "bool"
	TypeObject FieldType = "object"
	TypeArray  FieldType = "array"
)

func (t FieldType) known() bool {
	switch t {
	case TypeString, TypeInt, TypeFloat, TypeNumber, TypeBool, TypeObject, TypeArray:
		return true
	}
	return false
}

// Field describes one declared field. Nested Fields are only meaningful
// for object-typed fields.
type Field struct {
	Name     string    `yaml:"name"`
	Type     FieldType `yaml:"type"`
	Required bool      `yaml:"required"`
	Nullable bool      `yaml:"nullable"`
	Fields   []Field   `yaml:"fields,omitempty"`
}

// Descriptor is the process-wide schema. Strict schemas reject fields
// that are not declared; the default is permissive.
type Descriptor struct {
	Strict bool    `yaml:"strict"`
	Fields []Field `yaml:"fields"`
}

// Load reads and parses a schema descriptor from a YAML file.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML schema document and verifies it is well formed.
func Parse(data []byte) (*Descriptor, error) {
	var desc Descriptor
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(desc.Fields) == 0 {
		return nil, errors.New("schema declares no fields")
	}
	if errs := checkFields(desc.Fields, ""); len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &desc, nil
}

func checkFields(fields []Field, prefix string) []error {
	var errs []error
	seen := make(map[string]bool, len(fields))

	for _, f := range fields {
		path := joinPath(prefix, f.Name)
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("schema: field under %q has no name", prefix))
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("schema: duplicate field %q", path))
		}
		seen[f.Name] = true

		if !f.Type.known() {
			errs = append(errs, fmt.Errorf("schema: field %q has unknown type %q", path, f.Type))
		}
		if len(f.Fields) > 0 && f.Type != TypeObject {
			errs = append(errs, fmt.Errorf("schema: field %q declares nested fields but is not an object", path))
		}
		errs = append(errs, checkFields(f.Fields, path)...)
	}
	return errs
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

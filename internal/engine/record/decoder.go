package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/drblury/recordgate/internal/engine/jsoncodec"
)

// Decode turns a raw payload into a parsed record tree. Every failure
// mode, including panics from the underlying codec, is normalised into a
// StageError with ReasonDecodeError; Decode never faults on any input.
func Decode(raw RawRecord) (parsed *ParsedRecord, serr *StageError) {
	defer func() {
		if r := recover(); r != nil {
			parsed = nil
			serr = decodeError(fmt.Sprintf("codec panic: %v", r))
		}
	}()

	payload := bytes.TrimSpace(raw.Payload)
	if len(payload) == 0 {
		return nil, decodeError("empty payload")
	}

	dec := jsoncodec.NewNumberDecoder(bytes.NewReader(payload))
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, decodeError("malformed JSON: " + err.Error())
	}

	// One record is one document; anything after the first value makes
	// the payload malformed, whether or not it parses as JSON.
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		return nil, decodeError("trailing data after JSON document")
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, decodeError(fmt.Sprintf("payload is not a JSON object (got %T)", value))
	}

	root, err := fromValue(obj)
	if err != nil {
		return nil, decodeError(err.Error())
	}
	return &ParsedRecord{Root: root}, nil
}

func decodeError(detail string) *StageError {
	return &StageError{Reason: ReasonDecodeError, Detail: detail}
}

// fromValue maps the codec's generic representation onto the tagged node
// tree. With UseNumber enabled the codec only ever produces the types
// switched on here.
func fromValue(value any) (*Node, error) {
	switch v := value.(type) {
	case nil:
		return &Node{Kind: KindNull}, nil
	case bool:
		return &Node{Kind: KindBool, Bool: v}, nil
	case json.Number:
		return &Node{Kind: KindNumber, Number: v}, nil
	case string:
		return &Node{Kind: KindString, Str: v}, nil
	case map[string]any:
		fields := make(map[string]*Node, len(v))
		for name, child := range v {
			node, err := fromValue(child)
			if err != nil {
				return nil, err
			}
			fields[name] = node
		}
		return &Node{Kind: KindObject, Fields: fields}, nil
	case []any:
		items := make([]*Node, len(v))
		for i, child := range v {
			node, err := fromValue(child)
			if err != nil {
				return nil, err
			}
			items[i] = node
		}
		return &Node{Kind: KindArray, Items: items}, nil
	}
	return nil, fmt.Errorf("unsupported value of type %T", value)
}

package record

import (
	"testing"
)

func mustDecode(t *testing.T, payload string) *ParsedRecord {
	t.Helper()
	parsed, serr := Decode(RawRecord{Payload: []byte(payload)})
	if serr != nil {
		t.Fatalf("decode failed: %v", serr)
	}
	return parsed
}

func TestLookupResolvesNestedPaths(t *testing.T) {
	parsed := mustDecode(t, `{"route":{"origin":{"code":"JFK"}}}`)

	node, ok := Lookup(parsed.Root, "route.origin.code")
	if !ok || node.Str != "JFK" {
		t.Fatalf("expected JFK, got %#v", node)
	}

	if _, ok := Lookup(parsed.Root, "route.destination"); ok {
		t.Fatal("expected missing path to report absence")
	}
	if _, ok := Lookup(parsed.Root, "route.origin.code.deeper"); ok {
		t.Fatal("expected path through scalar to report absence")
	}
}

func TestInterfaceRoundTripPreservesKinds(t *testing.T) {
	parsed := mustDecode(t, `{"s":"x","i":7,"f":1.5,"b":true,"n":null,"arr":[1,"two"],"obj":{"k":"v"}}`)

	got, ok := parsed.Root.Interface().(map[string]any)
	if !ok {
		t.Fatalf("expected map, got %T", parsed.Root.Interface())
	}
	if got["s"] != "x" {
		t.Fatalf("expected string survive, got %#v", got["s"])
	}
	if got["n"] != nil {
		t.Fatalf("expected null survive, got %#v", got["n"])
	}
	arr, ok := got["arr"].([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("expected 2-element array, got %#v", got["arr"])
	}
}

func TestVerdictConstruction(t *testing.T) {
	raw := RawRecord{Payload: []byte(`{}`), Source: SourceInfo{Topic: "t", Offset: 3}}
	parsed := mustDecode(t, `{}`)

	valid := ValidVerdict(raw, parsed)
	if !valid.IsValid() || valid.Reason != "" {
		t.Fatalf("expected valid verdict, got %#v", valid)
	}

	invalid := InvalidVerdict(raw, nil, &StageError{Reason: ReasonDecodeError, Detail: "boom"})
	if invalid.IsValid() {
		t.Fatal("expected invalid verdict")
	}
	if invalid.Reason != ReasonDecodeError || invalid.Detail != "boom" {
		t.Fatalf("expected decode_error/boom, got %s/%s", invalid.Reason, invalid.Detail)
	}
	if invalid.Raw.Source.Offset != 3 {
		t.Fatal("expected source metadata to ride along")
	}
}

func TestReasonsClosedSet(t *testing.T) {
	reasons := Reasons()
	if len(reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %d", len(reasons))
	}
	for _, r := range reasons {
		if !r.Known() {
			t.Fatalf("reason %s should be known", r)
		}
	}
	if FailureReason("something_else").Known() {
		t.Fatal("unexpected reason accepted")
	}
}

func TestStageErrorMessage(t *testing.T) {
	err := &StageError{Reason: ReasonTypeMismatch, Detail: `field "x": expected int, got string`}
	want := `type_mismatch: field "x": expected int, got string`
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}

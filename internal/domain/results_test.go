package domain

import (
	"encoding/json"
	"testing"
)

// TestFlexStringAcceptsStringsAndNumbers covers the user_id shapes the backend returns.
func TestFlexStringAcceptsStringsAndNumbers(t *testing.T) {
	cases := map[string]FlexString{
		`{"id":"alice"}`:    "alice",
		`{"id":4242}`:       "4242",
		`{"id":null}`:       "",
		`{"id":true}`:       "true",
		`{"id":"<b>x</b>"}`: "<b>x</b>",
	}

	for raw, want := range cases {
		var v struct {
			ID FlexString `json:"id"`
		}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if v.ID != want {
			t.Fatalf("%s: id = %q, want %q", raw, v.ID, want)
		}
	}
}

// TestFlexStringRejectsObjects keeps structured ids from being stringified.
func TestFlexStringRejectsObjects(t *testing.T) {
	var v struct {
		ID FlexString `json:"id"`
	}
	if err := json.Unmarshal([]byte(`{"id":{"x":1}}`), &v); err == nil {
		t.Fatal("expected error for object id")
	}
}

// TestParseVariant checks normalization of configured variants.
func TestParseVariant(t *testing.T) {
	if v, ok := ParseVariant(" Single "); !ok || v != VariantSingle {
		t.Fatalf("ParseVariant(single) = %q, %v", v, ok)
	}
	if v, ok := ParseVariant("full"); !ok || v != VariantFull {
		t.Fatalf("ParseVariant(full) = %q, %v", v, ok)
	}
	if _, ok := ParseVariant("turbo"); ok {
		t.Fatal("unexpected ok for unknown variant")
	}
}

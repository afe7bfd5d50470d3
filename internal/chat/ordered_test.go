package chat

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseJSONPreservesKeyOrder(t *testing.T) {
	// Keys deliberately in non-alphabetical order.
	v, err := parseJSON(`{"zeta": 1, "alpha": 2, "mid": 3}`)
	if err != nil {
		t.Fatal(err)
	}
	obj, ok := v.(*orderedObject)
	if !ok {
		t.Fatalf("expected *orderedObject, got %T", v)
	}
	want := []string{"zeta", "alpha", "mid"}
	if !reflect.DeepEqual(obj.keys, want) {
		t.Errorf("keys = %v, want %v", obj.keys, want)
	}
}

func TestParseJSONDuplicateKeys(t *testing.T) {
	v, err := parseJSON(`{"a": 1, "b": 2, "a": 3}`)
	if err != nil {
		t.Fatal(err)
	}
	obj := v.(*orderedObject)
	if !reflect.DeepEqual(obj.keys, []string{"a", "b"}) {
		t.Errorf("duplicate key should keep first position: %v", obj.keys)
	}
	got, _ := obj.get("a")
	if got != json.Number("3") {
		t.Errorf("duplicate key should keep last value: %v", got)
	}
}

func TestParseJSONTypes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, v any)
	}{
		{
			name:  "number stays json.Number",
			input: `3.14`,
			check: func(t *testing.T, v any) {
				if v != json.Number("3.14") {
					t.Errorf("got %T %v", v, v)
				}
			},
		},
		{
			name:  "string",
			input: `"hi"`,
			check: func(t *testing.T, v any) {
				if v != "hi" {
					t.Errorf("got %v", v)
				}
			},
		},
		{
			name:  "null",
			input: `null`,
			check: func(t *testing.T, v any) {
				if v != nil {
					t.Errorf("got %v", v)
				}
			},
		},
		{
			name:  "nested array of objects",
			input: `[{"x": 1}, "s"]`,
			check: func(t *testing.T, v any) {
				arr, ok := v.([]any)
				if !ok || len(arr) != 2 {
					t.Fatalf("got %T %v", v, v)
				}
				if _, ok := arr[0].(*orderedObject); !ok {
					t.Errorf("nested object should be *orderedObject, got %T", arr[0])
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := parseJSON(tt.input)
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, v)
		})
	}
}

func TestParseJSONErrors(t *testing.T) {
	for _, input := range []string{``, `{`, `not json`, `{"a": 1} trailing`} {
		if _, err := parseJSON(input); err == nil {
			t.Errorf("input %q: expected error", input)
		}
	}
}

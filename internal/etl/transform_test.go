package etl

import (
	"errors"
	"testing"
	"time"
)

func TestTransformApply(t *testing.T) {
	cases := []struct {
		name      string
		transform Transform
		in        any
		want      any
		wantErr   bool
	}{
		{"lowercase", TransformLowercase, "ABC", "abc", false},
		{"uppercase", TransformUppercase, "abc", "ABC", false},
		{"stringify int", TransformStringify, 42, "42", false},
		{"none passthrough", TransformNone, 42, 42, false},
		{"nil passthrough", TransformLowercase, nil, nil, false},
		{"structured object", TransformStructured, `{"a":1}`, nil, false},
		{"structured invalid", TransformStructured, `{not json`, nil, true},
		{"timestamp invalid", TransformTimestamp, "not-a-date", nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.transform.Apply(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.want != nil && got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTransformTimestamp(t *testing.T) {
	got, err := TransformTimestamp.Apply("2024-01-15T00:00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts, ok := got.(time.Time)
	if !ok {
		t.Fatalf("expected time.Time, got %T", got)
	}
	if ts.Year() != 2024 || ts.Month() != time.January || ts.Day() != 15 {
		t.Fatalf("parsed wrong instant: %v", ts)
	}

	if _, err := TransformTimestamp.Apply("2024-01-15"); err != nil {
		t.Fatalf("date-only layout rejected: %v", err)
	}
}

func TestParseTransformUnknown(t *testing.T) {
	_, err := ParseTransform("rot13")
	if err == nil {
		t.Fatal("expected configuration error for unknown transform")
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %T", err)
	}
}

func TestParseTransformKnown(t *testing.T) {
	for _, name := range []string{"", "lowercase", "uppercase", "timestamp", "structured-parse", "stringify"} {
		if _, err := ParseTransform(name); err != nil {
			t.Fatalf("ParseTransform(%q): %v", name, err)
		}
	}
}

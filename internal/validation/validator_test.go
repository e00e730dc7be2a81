package validation

import (
	"errors"
	"testing"
)

type sample struct {
	Title string  `json:"title" validate:"required,max=5"`
	Slug  string  `json:"slug" validate:"omitempty,slug"`
	Date  *string `json:"date" validate:"omitempty,isodate"`
	Kind  string  `json:"kind" validate:"omitempty,oneof=a b"`
}

func strPtr(s string) *string { return &s }

func TestStruct(t *testing.T) {
	tests := []struct {
		name  string
		in    sample
		field string
		tag   string
	}{
		{"valid", sample{Title: "hi", Slug: "a-b-1", Date: strPtr("1950-02-28"), Kind: "a"}, "", ""},
		{"missing title", sample{}, "title", "required"},
		{"title too long", sample{Title: "abcdefgh"}, "title", "max"},
		{"bad slug", sample{Title: "x", Slug: "Hello World"}, "slug", "slug"},
		{"bad date", sample{Title: "x", Date: strPtr("1950-02-30")}, "date", "isodate"},
		{"bad date format", sample{Title: "x", Date: strPtr("02/03/1950")}, "date", "isodate"},
		{"bad oneof", sample{Title: "x", Kind: "c"}, "kind", "oneof"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.in)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if len(verr.Fields) != 1 {
				t.Fatalf("fields = %+v", verr.Fields)
			}
			if verr.Fields[0].Field != tt.field || verr.Fields[0].Tag != tt.tag {
				t.Errorf("got %s/%s, want %s/%s", verr.Fields[0].Field, verr.Fields[0].Tag, tt.field, tt.tag)
			}
			if verr.Fields[0].Message == "" {
				t.Error("message should not be empty")
			}
		})
	}
}

func TestErrorDetails(t *testing.T) {
	err := New("death_date", "order", "death_date must be after birth_date")
	if err.Error() != "death_date must be after birth_date" {
		t.Errorf("Error() = %q", err.Error())
	}
	fields, ok := err.Details()["details"].([]FieldError)
	if !ok || len(fields) != 1 || fields[0].Field != "death_date" {
		t.Errorf("Details() = %+v", err.Details())
	}
}

func TestIsISODate(t *testing.T) {
	for in, want := range map[string]bool{
		"2000-01-01": true,
		"2000-13-01": false,
		"2000-1-1":   false,
		"":           false,
	} {
		if got := IsISODate(in); got != want {
			t.Errorf("IsISODate(%q) = %v, want %v", in, got, want)
		}
	}
}

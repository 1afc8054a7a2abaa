package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7(t *testing.T) {
	gen := UUIDv7()
	prev := ""
	for i := 0; i < 100; i++ {
		id := gen()
		if len(id) != 36 || id[14] != '7' {
			t.Fatalf("UUIDv7: got %q, want a version 7 UUID", id)
		}
		if id <= prev {
			t.Fatalf("UUIDv7: %q not after %q", id, prev)
		}
		prev = id
	}
}

func TestParse(t *testing.T) {
	id := New()
	got, err := Parse(strings.ToUpper(id))
	if err != nil {
		t.Fatalf("Parse(%q): %v", id, err)
	}
	if got != id {
		t.Errorf("Parse: got %q, want %q", got, id)
	}
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Error("Parse: expected error")
	}
}

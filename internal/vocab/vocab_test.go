package vocab

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewRejectsBadTokens(t *testing.T) {
	t.Parallel()
	if _, err := New([]string{"a", "", "b"}); err == nil {
		t.Fatalf("expected error for empty token")
	}
	if _, err := New([]string{"a", "b", "a"}); err == nil {
		t.Fatalf("expected error for duplicate token")
	}
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()
	v, err := New([]string{"<pad>", "<s>", "</s>", "hello", "world"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ids, err := v.Encode("  hello world\thello ")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if diff := cmp.Diff([]int{3, 4, 3}, ids); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}

	if _, err := v.Encode("hello moon"); err == nil {
		t.Fatalf("expected error for unknown token")
	}

	got := v.Decode([]int{1, 3, 4, 2}, 0, 1, 2)
	if got != "hello world" {
		t.Fatalf("Decode: got %q", got)
	}
	if got := v.Decode([]int{3, 9}); got != "hello <9>" {
		t.Fatalf("Decode unknown: got %q", got)
	}
}

func TestNumeric(t *testing.T) {
	t.Parallel()
	v := Numeric(4)
	if v.Len() != 4 {
		t.Fatalf("Len: got %d", v.Len())
	}
	if id, ok := v.ID("3"); !ok || id != 3 {
		t.Fatalf("ID(3): got %d,%v", id, ok)
	}
	if v.Token(-1) != "<-1>" {
		t.Fatalf("Token(-1): got %q", v.Token(-1))
	}
}

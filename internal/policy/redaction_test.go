package policy

import (
	"strings"
	"testing"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at asha@example.com or +91 98765 43210 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	if !changed {
		t.Fatalf("changed = false, want true")
	}
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		if !strings.Contains(out, marker) {
			t.Fatalf("output missing marker %q: %q", marker, out)
		}
	}
}

func TestRedactForLogPassthrough(t *testing.T) {
	in := "upsert lead failed: connection refused"
	if got := RedactForLog(in); got != in {
		t.Fatalf("RedactForLog(%q) = %q, want unchanged", in, got)
	}
}

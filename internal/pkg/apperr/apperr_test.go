package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsAndKindOf(t *testing.T) {
	base := errors.New("dial tcp: timeout")
	err := fmt.Errorf("generate: %w", Upstream("question generation failed", base))

	if !Is(err, KindUpstream) {
		t.Fatalf("Is(err, upstream) = false")
	}
	if Is(err, KindInternal) {
		t.Fatalf("Is(err, internal) = true")
	}
	if !errors.Is(err, base) {
		t.Fatalf("wrapped cause lost")
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Fatalf("KindOf(plain) = %q", got)
	}
	if Is(nil, KindValidation) {
		t.Fatalf("Is(nil) = true")
	}
}

func TestPublicMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", Validation("count must be between 1 and 10"), "count must be between 1 and 10"},
		{"forbidden hidden", Forbidden("answer belongs to another user"), "not found"},
		{"upstream hidden", Upstream("llm", errors.New("secret payload")), "generation service unavailable"},
		{"plain", errors.New("boom"), "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PublicMessage(tt.err); got != tt.want {
				t.Errorf("PublicMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

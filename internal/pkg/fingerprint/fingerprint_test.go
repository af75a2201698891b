package fingerprint

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestSignatureNormalization(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"only short tokens", "a an to of", ""},
		{"punctuation removed", "Hello, World!!!", "hello|world"},
		{"case folded", "GOLANG Golang golang", "golang|golang|golang"},
		{"punctuation inside word", "What's a goroutine?", "goroutine|whats"},
		{"underscore kept", "explain sync_once usage", "explain|sync_once|usage"},
		{"hangul kept", "동작 원리를 설명해주세요", "설명해주세요|원리를"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Signature(tt.in); got != tt.want {
				t.Errorf("Signature(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSignatureWhitespaceInvariant(t *testing.T) {
	a := Signature("How does the Go scheduler handle blocking syscalls")
	b := Signature("  How   does the\tGo scheduler\n\nhandle blocking   syscalls  ")
	if a != b {
		t.Fatalf("whitespace edits changed signature: %q vs %q", a, b)
	}
}

func TestSignatureOrderInvariant(t *testing.T) {
	a := Signature("React Virtual DOM 동작 원리를 설명해주세요")
	b := Signature("설명해주세요, 원리를 동작 Virtual DOM React!")
	if a != b {
		t.Fatalf("reordering changed signature: %q vs %q", a, b)
	}
	if a == "" {
		t.Fatal("expected non-empty signature")
	}
}

func TestSignatureChangesWithTokens(t *testing.T) {
	base := Signature("explain database index selectivity")
	tests := []struct {
		name string
		in   string
	}{
		{"added", "explain database index selectivity tradeoffs"},
		{"removed", "explain database selectivity"},
		{"altered", "explain database index cardinality"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Signature(tt.in); got == base {
				t.Errorf("Signature(%q) = base signature %q", tt.in, base)
			}
		})
	}
}

func TestSignatureTruncatesSortedTokens(t *testing.T) {
	words := make([]string, 0, 150)
	for i := 149; i >= 0; i-- {
		words = append(words, fmt.Sprintf("tok%03d", i))
	}
	tokens := Split(Signature(strings.Join(words, " ")))
	if len(tokens) != MaxTokens {
		t.Fatalf("expected %d tokens, got %d", MaxTokens, len(tokens))
	}
	if tokens[0] != "tok000" || tokens[MaxTokens-1] != "tok099" {
		t.Fatalf("unexpected bounds: first=%q last=%q", tokens[0], tokens[MaxTokens-1])
	}
}

func TestDigest(t *testing.T) {
	a := Digest("Senior backend engineer, Go and Kubernetes")
	b := Digest("Kubernetes and Go: senior backend engineer")
	if len(a) != DigestLength {
		t.Fatalf("digest length = %d, want %d", len(a), DigestLength)
	}
	if strings.Trim(a, "0123456789abcdef") != "" {
		t.Fatalf("digest %q is not lowercase hex", a)
	}
	if a != b {
		t.Fatalf("reordered text produced different digests: %q vs %q", a, b)
	}
	if c := Digest("Frontend engineer, React and TypeScript"); c == a {
		t.Fatalf("different texts share digest %q", a)
	}
}

func TestSimilarityIdentical(t *testing.T) {
	s := Signature("explain the difference between processes and threads")
	if got := Similarity(s, s); got != 1.0 {
		t.Errorf("Similarity(s, s) = %v, want 1.0", got)
	}
}

func TestSimilarityEmpty(t *testing.T) {
	s := Signature("explain the difference between processes and threads")
	tests := []struct {
		name string
		a, b string
	}{
		{"both empty", "", ""},
		{"right empty", s, ""},
		{"left empty", "", s},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); got != 0 {
				t.Errorf("Similarity() = %v, want 0", got)
			}
		})
	}
}

func TestSimilarityJaccardArithmetic(t *testing.T) {
	shared := []string{"aaa", "bbb", "ccc", "ddd", "eee", "fff", "ggg"}
	a := strings.Join(append(append([]string{}, shared...), "xxa", "xxb", "xxc"), Delimiter)
	b := strings.Join(append(append([]string{}, shared...), "yya", "yyb", "yyc"), Delimiter)

	got := Similarity(a, b)
	want := 7.0 / 13.0
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("Similarity() = %v, want %v", got, want)
	}
	if math.Round(got*100)/100 != 0.54 {
		t.Fatalf("Similarity() = %v, want ~0.54", got)
	}
	if IsSimilar(a, b, DefaultThreshold) {
		t.Fatalf("7/13 should be below the default threshold")
	}
}

func TestSimilarityIgnoresDuplicateTokens(t *testing.T) {
	if got := Similarity("aaa|aaa|bbb", "aaa|bbb"); got != 1.0 {
		t.Errorf("Similarity() = %v, want 1.0", got)
	}
}

func TestIsSimilarSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"how does garbage collection work in go", "explain how go garbage collection works"},
		{"what is a mutex", "describe channel buffering semantics"},
		{"", "explain goroutine leaks"},
	}
	for _, thr := range []float64{0.3, 0.5, DefaultThreshold, 1} {
		for _, p := range pairs {
			a, b := Signature(p[0]), Signature(p[1])
			if IsSimilar(a, b, thr) != IsSimilar(b, a, thr) {
				t.Errorf("IsSimilar not symmetric for %q / %q at %v", p[0], p[1], thr)
			}
		}
	}
}

func TestHasSignal(t *testing.T) {
	tests := []struct {
		sig  string
		want bool
	}{
		{"", false},
		{"golang", false},
		{"golang|golang|golang", false},
		{"channel|golang|select", true},
	}
	for _, tt := range tests {
		if got := HasSignal(tt.sig); got != tt.want {
			t.Errorf("HasSignal(%q) = %v, want %v", tt.sig, got, tt.want)
		}
	}
}

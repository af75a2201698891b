package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

const (
	// Delimiter joins tokens inside a signature. Normalization never produces it.
	Delimiter = "|"
	// MinTokenLength is the shortest token (in runes) kept in a signature.
	MinTokenLength = 3
	// MaxTokens caps the number of tokens kept after sorting.
	MaxTokens = 100
	// DigestLength is the number of hex characters returned by Digest.
	DigestLength = 32
)

// Normalize case-folds text, removes every rune that is not a letter, digit,
// mark, underscore or whitespace, and collapses runs of whitespace.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	// Casers carry state, so each call gets its own.
	folded := cases.Fold().String(text)

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r), r == '_':
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tokens returns the sorted meaningful tokens of text, duplicates included,
// truncated to MaxTokens.
func Tokens(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	raw := strings.Fields(normalized)
	tokens := make([]string, 0, len(raw))
	for _, token := range raw {
		if utf8.RuneCountInString(token) < MinTokenLength {
			continue
		}
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	if len(tokens) > MaxTokens {
		tokens = tokens[:MaxTokens]
	}
	return tokens
}

// Signature returns the canonical token signature of text. Empty input yields "".
func Signature(text string) string {
	return strings.Join(Tokens(text), Delimiter)
}

// Digest returns the first DigestLength hex characters of sha-256(Signature(text)).
func Digest(text string) string {
	sum := sha256.Sum256([]byte(Signature(text)))
	return hex.EncodeToString(sum[:])[:DigestLength]
}

// Split breaks a signature back into its tokens. The empty signature has none.
func Split(signature string) []string {
	if signature == "" {
		return nil
	}
	return strings.Split(signature, Delimiter)
}

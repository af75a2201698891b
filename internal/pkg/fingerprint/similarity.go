package fingerprint

const (
	// DefaultThreshold is the similarity at which two questions count as duplicates.
	DefaultThreshold = 0.7
	// MinSignalTokens is the smallest token set that carries enough signal to be
	// compared at all.
	MinSignalTokens = 3
)

// Similarity computes the Jaccard index of the token sets of two signatures.
// Returns 0 when both sets are empty.
func Similarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// IsSimilar reports whether Similarity(a, b) reaches threshold.
func IsSimilar(a, b string, threshold float64) bool {
	return Similarity(a, b) >= threshold
}

// HasSignal reports whether a signature has enough distinct tokens to be used
// as evidence of duplication.
func HasSignal(signature string) bool {
	return len(tokenSet(signature)) >= MinSignalTokens
}

func tokenSet(signature string) map[string]struct{} {
	tokens := Split(signature)
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if token == "" {
			continue
		}
		set[token] = struct{}{}
	}
	return set
}

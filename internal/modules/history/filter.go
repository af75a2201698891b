package history

import "github.com/interviewlab/core/internal/pkg/fingerprint"

// FilterResult lists the candidate indexes that survived and how many were dropped.
type FilterResult struct {
	Kept           []int
	AgainstHistory int
	WithinBatch    int
}

// FilterDuplicates drops candidate signatures that are near duplicates of a
// recent entry or of an earlier kept candidate. Signatures without enough
// tokens to compare are always kept.
func FilterDuplicates(signatures []string, recent []Entry, threshold float64) FilterResult {
	if threshold <= 0 {
		threshold = fingerprint.DefaultThreshold
	}

	res := FilterResult{Kept: make([]int, 0, len(signatures))}
	accepted := make([]string, 0, len(signatures))

candidates:
	for i, sig := range signatures {
		if !fingerprint.HasSignal(sig) {
			res.Kept = append(res.Kept, i)
			continue
		}
		for _, e := range recent {
			if fingerprint.HasSignal(e.Signature) && fingerprint.IsSimilar(sig, e.Signature, threshold) {
				res.AgainstHistory++
				continue candidates
			}
		}
		for _, prev := range accepted {
			if fingerprint.IsSimilar(sig, prev, threshold) {
				res.WithinBatch++
				continue candidates
			}
		}
		accepted = append(accepted, sig)
		res.Kept = append(res.Kept, i)
	}
	return res
}

// Package fingerprint reduces free text to comparable token signatures.
//
// A signature is the sorted list of meaningful tokens of a text joined with "|":
//   - text is case-folded and stripped of punctuation (letters, digits and marks of any script survive)
//   - whitespace is collapsed and tokens shorter than 3 runes are dropped
//   - tokens are sorted and the first 100 are kept
//
// Sorting makes signatures independent of word order, so paraphrases that only
// shuffle words compare as identical. Signatures are compared with the Jaccard
// index over their token sets. A Digest is a short sha-256 prefix of a signature
// and only serves as an identity key for reference documents.
package fingerprint

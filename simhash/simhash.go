package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"
)

// NearDuplicateDistance is the Hamming distance at or under which two page
// texts are treated as the same content (variant URLs, tracking params).
const NearDuplicateDistance = 3

// Fingerprint computes a 64-bit SimHash over normalised word bigrams of text.
// Single-word texts fall back to unigrams. Empty text yields 0.
func Fingerprint(text string) uint64 {
	words := normalise(text)
	if len(words) == 0 {
		return 0
	}

	features := words
	if len(words) > 1 {
		features = make([]string, 0, len(words)-1)
		for i := 0; i+1 < len(words); i++ {
			features = append(features, words[i]+" "+words[i+1])
		}
	}

	var vector [64]int
	for _, f := range features {
		h := fnv.New64a()
		h.Write([]byte(f))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	var fp uint64
	for i, v := range vector {
		if v > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// normalise lowercases text and splits it on anything that is not a letter or digit.
func normalise(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b are within threshold bits of each other.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// Unique returns the indexes of fps to keep so that no two kept non-zero
// fingerprints are within threshold. The first of a near-duplicate group
// wins; zero fingerprints (no text) are always kept.
func Unique(fps []uint64, threshold int) []int {
	keep := make([]int, 0, len(fps))
	var kept []uint64
	for i, fp := range fps {
		if fp == 0 {
			keep = append(keep, i)
			continue
		}
		dup := false
		for _, k := range kept {
			if Similar(fp, k, threshold) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, fp)
			keep = append(keep, i)
		}
	}
	return keep
}

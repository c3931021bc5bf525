package orchestrator

import (
	"strings"
	"unicode"

	"github.com/danielpatrickdp/clevr-extended/go-generator/internal/sample"
)

// #region buckets

const defaultNumBuckets = 3

// Bucket holds texts whose attribute-word count lies in [Lower, Upper).
type Bucket struct {
	Lower int
	Upper int
	Texts []string
}

// WordCount counts the attribute words in text, ignoring surrounding
// punctuation on each token.
func WordCount(text string, words map[string]bool) int {
	n := 0
	for _, tok := range strings.Fields(text) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if words[tok] {
			n++
		}
	}
	return n
}

// Bucketize partitions texts into ascending length buckets over
// [max(1, min), max]. Texts with no attribute words fall outside every
// bucket unless all texts are that short.
func Bucketize(texts []string, words map[string]bool, numBuckets int) []Bucket {
	if len(texts) == 0 {
		return nil
	}
	lengths := make([]int, len(texts))
	lo, hi := -1, 0
	for i, t := range texts {
		lengths[i] = WordCount(t, words)
		if lo < 0 || lengths[i] < lo {
			lo = lengths[i]
		}
		hi = max(hi, lengths[i])
	}
	lo = max(1, lo)
	size := max((hi-lo)/numBuckets, 1)

	var bounds []int
	for b := lo; b < hi; b += size {
		bounds = append(bounds, b)
	}
	if len(bounds) == 0 {
		bounds = []int{0, hi + 1}
	} else {
		bounds = append(bounds, hi+1)
	}

	buckets := make([]Bucket, len(bounds)-1)
	for i := range buckets {
		buckets[i] = Bucket{Lower: bounds[i], Upper: bounds[i+1]}
	}
	for i, t := range texts {
		for j := range buckets {
			if lengths[i] >= buckets[j].Lower && lengths[i] < buckets[j].Upper {
				buckets[j].Texts = append(buckets[j].Texts, t)
			}
		}
	}
	return buckets
}

// Balanced reports whether every bucket already holds its share of
// maxInstances, the early-stop condition of a batch.
func Balanced(buckets []Bucket, maxInstances int) bool {
	if len(buckets) == 0 {
		return false
	}
	share := max(float64(maxInstances)/float64(len(buckets)), 1)
	for _, b := range buckets {
		if float64(len(b.Texts)) < share {
			return false
		}
	}
	return true
}

// Select samples up to max(1, maxInstances/len(buckets)) texts from each
// non-empty bucket, longest bucket first.
func Select(r sample.Source, buckets []Bucket, maxInstances int) []string {
	if len(buckets) == 0 {
		return nil
	}
	per := max(1, maxInstances/len(buckets))
	var out []string
	for i := len(buckets) - 1; i >= 0; i-- {
		if len(buckets[i].Texts) == 0 {
			continue
		}
		out = append(out, sample.Sample(r, buckets[i].Texts, per)...)
	}
	return out
}

// #endregion

package digest

import (
	"hash/fnv"
	"math/bits"
	"strings"

	"golang.org/x/net/html"
)

// shingleSize is the tag n-gram width used for structure fingerprints.
const shingleSize = 3

// Fingerprint is a 64-bit SimHash over whitespace-separated tokens.
// Empty input hashes to 0.
func Fingerprint(text string) uint64 {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return 0
	}

	var votes [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		for bit := 0; bit < 64; bit++ {
			if sum>>uint(bit)&1 == 1 {
				votes[bit]++
			} else {
				votes[bit]--
			}
		}
	}

	var fp uint64
	for bit, v := range votes {
		if v > 0 {
			fp |= 1 << uint(bit)
		}
	}
	return fp
}

// Distance is the Hamming distance between two fingerprints (0..64).
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Structure fingerprints the element sequence of an HTML document.
// Text, attributes and comments are ignored, so rewriting asset URLs
// leaves the fingerprint unchanged.
func Structure(doc string) uint64 {
	tags := startTags(doc)
	if len(tags) == 0 {
		return 0
	}
	grams := shingles(tags, shingleSize)
	if len(grams) == 0 {
		return Fingerprint(strings.Join(tags, " "))
	}
	return Fingerprint(strings.Join(grams, " "))
}

// Fidelity compares the rendered document with its rewritten offline copy.
type Fidelity struct {
	Distance   int     `json:"distance"`
	Similarity float64 `json:"similarity"` // 1 - distance/64, two decimals
}

// Compare computes the structure fidelity of rewritten against rendered.
func Compare(rendered, rewritten string) Fidelity {
	d := Distance(Structure(rendered), Structure(rewritten))
	sim := 1 - float64(d)/64
	return Fidelity{
		Distance:   d,
		Similarity: float64(int(sim*100+0.5)) / 100,
	}
}

func startTags(doc string) []string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var tags []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tags
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tags = append(tags, string(name))
		}
	}
}

func shingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], "_"))
	}
	return out
}

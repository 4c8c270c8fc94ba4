package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldDiacritics decomposes text and drops combining marks, so "Técnico"
// and "tecnico" compare equal after normalization.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var nonWordRun = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// DefaultNGramSizes are the substring lengths used for fuzzy containment.
var DefaultNGramSizes = []int{3, 4, 5}

// Normalize folds text to its canonical comparable form: diacritic-free
// lowercase with single spaces. Idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// Tokenize splits normalized text on non-word-character runs, dropping empties.
func Tokenize(s string) []string {
	var tokens []string
	for _, t := range nonWordRun.Split(Normalize(s), -1) {
		if t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// NGrams returns every contiguous substring of the given sizes per token of
// the normalized text. A token shorter than a size contributes itself once.
// Omitting sizes uses DefaultNGramSizes.
func NGrams(s string, sizes ...int) map[string]struct{} {
	if len(sizes) == 0 {
		sizes = DefaultNGramSizes
	}
	grams := make(map[string]struct{})
	for _, token := range Tokenize(s) {
		r := []rune(token)
		for _, size := range sizes {
			if len(r) <= size {
				grams[token] = struct{}{}
				continue
			}
			for i := 0; i+size <= len(r); i++ {
				grams[string(r[i:i+size])] = struct{}{}
			}
		}
	}
	return grams
}

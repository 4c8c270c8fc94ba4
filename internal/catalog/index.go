package catalog

import (
	"sort"
	"strings"

	"github.com/ofertascauca/senabot/internal/domain/entities"
	"github.com/ofertascauca/senabot/pkg/textutil"
)

// AliasLookup is the slice of the alias table the index needs for its
// expansion pass. Satisfied by services.AliasTable.
type AliasLookup interface {
	Canonicals() []string
	VariantsOf(canonical string) []string
	Resolve(text string) (string, bool)
}

// Index holds the inverted indices over the catalog. Built once at startup
// and read-only afterwards, so concurrent readers need no locking.
type Index struct {
	catalog *Catalog

	locations map[string][]entities.OfferRef
	muniKeys  map[string]struct{}
	venueKeys map[string]struct{}

	phrases       map[string][]string // normalized phrase -> codes
	sortedPhrases []string
	tokens        map[string][]string // token -> codes
	grams         map[string][]string // character n-gram -> codes
}

// BuildIndex makes a single pass over all programs and offers, then runs the
// alias expansion pass so any known spelling of a location resolves to the
// same postings. aliases may be nil.
func BuildIndex(c *Catalog, aliases AliasLookup) *Index {
	idx := &Index{
		catalog:   c,
		locations: make(map[string][]entities.OfferRef),
		muniKeys:  make(map[string]struct{}),
		venueKeys: make(map[string]struct{}),
		phrases:   make(map[string][]string),
		tokens:    make(map[string][]string),
		grams:     make(map[string][]string),
	}

	for _, p := range c.Programs() {
		for _, o := range p.Offers {
			ref := entities.OfferRef{Code: p.Code, Ordinal: o.Ordinal}
			if o.MunicipalityNorm != "" {
				idx.addLocation(o.MunicipalityNorm, ref, idx.muniKeys)
			}
			if o.MunicipalityBase != "" && o.MunicipalityBase != o.MunicipalityNorm {
				idx.addLocation(o.MunicipalityBase, ref, idx.muniKeys)
			}
			if o.VenueNorm != "" {
				idx.addLocation(o.VenueNorm, ref, idx.venueKeys)
			}
		}

		idx.addPhrase(p.NameNorm, p.Code)
		for _, tok := range textutil.Tokenize(p.NameNorm) {
			idx.addToken(tok, p.Code)
		}
		for g := range textutil.NGrams(p.NameNorm) {
			idx.addGram(g, p.Code)
		}
		for _, kw := range p.Keywords {
			kwNorm := textutil.Normalize(kw)
			idx.addPhrase(kwNorm, p.Code)
			for _, tok := range textutil.Tokenize(kwNorm) {
				idx.addToken(tok, p.Code)
			}
			for g := range textutil.NGrams(kwNorm) {
				idx.addGram(g, p.Code)
			}
		}
	}

	idx.expandAliases(aliases)

	for k := range idx.locations {
		idx.locations[k] = sortRefs(dedupeRefs(idx.locations[k]))
	}
	for k := range idx.phrases {
		idx.phrases[k] = sortStrings(dedupeStrings(idx.phrases[k]))
	}
	for k := range idx.tokens {
		idx.tokens[k] = sortStrings(dedupeStrings(idx.tokens[k]))
	}
	for k := range idx.grams {
		idx.grams[k] = sortStrings(dedupeStrings(idx.grams[k]))
	}

	idx.sortedPhrases = make([]string, 0, len(idx.phrases))
	for ph := range idx.phrases {
		idx.sortedPhrases = append(idx.sortedPhrases, ph)
	}
	sort.Strings(idx.sortedPhrases)

	return idx
}

func (idx *Index) addLocation(key string, ref entities.OfferRef, kind map[string]struct{}) {
	idx.locations[key] = append(idx.locations[key], ref)
	kind[key] = struct{}{}
}

func (idx *Index) addPhrase(phrase, code string) {
	if phrase == "" {
		return
	}
	idx.phrases[phrase] = append(idx.phrases[phrase], code)
}

func (idx *Index) addToken(token, code string) {
	if token == "" {
		return
	}
	idx.tokens[token] = append(idx.tokens[token], code)
}

func (idx *Index) addGram(gram, code string) {
	idx.grams[gram] = append(idx.grams[gram], code)
}

// expandAliases points every spelling variant of a canonical location key at
// the union of postings already indexed under any of its variants.
func (idx *Index) expandAliases(aliases AliasLookup) {
	if aliases == nil {
		return
	}
	for _, canon := range aliases.Canonicals() {
		variants := aliases.VariantsOf(canon)

		var union []entities.OfferRef
		isMuni, isVenue := false, false
		for _, v := range variants {
			if refs, ok := idx.locations[v]; ok {
				union = append(union, refs...)
				if _, ok := idx.muniKeys[v]; ok {
					isMuni = true
				}
				if _, ok := idx.venueKeys[v]; ok {
					isVenue = true
				}
			}
		}
		if len(union) == 0 {
			continue
		}

		for _, v := range variants {
			idx.locations[v] = append(idx.locations[v], union...)
			if isMuni {
				idx.muniKeys[v] = struct{}{}
			}
			if isVenue {
				idx.venueKeys[v] = struct{}{}
			}
		}
	}
}

// Catalog returns the underlying catalog.
func (idx *Index) Catalog() *Catalog {
	return idx.catalog
}

// Empty reports whether the index holds no programs.
func (idx *Index) Empty() bool {
	return idx.catalog == nil || idx.catalog.Len() == 0
}

// HasLocationKey reports whether key is an indexed municipality or venue.
func (idx *Index) HasLocationKey(key string) bool {
	_, ok := idx.locations[key]
	return ok
}

// IsMunicipalityKey reports whether key indexes municipality postings.
func (idx *Index) IsMunicipalityKey(key string) bool {
	_, ok := idx.muniKeys[key]
	return ok
}

// IsVenueKey reports whether key indexes venue postings.
func (idx *Index) IsVenueKey(key string) bool {
	_, ok := idx.venueKeys[key]
	return ok
}

// PostingsFor unions the postings of all given location keys.
func (idx *Index) PostingsFor(keys []string) []entities.OfferRef {
	var out []entities.OfferRef
	for _, k := range keys {
		out = append(out, idx.locations[k]...)
	}
	return sortRefs(dedupeRefs(out))
}

// CodesForPhraseContains returns codes whose indexed name or keyword phrase
// contains the given normalized phrase on word boundaries, so "astronomia"
// never matches inside "gastronomia".
func (idx *Index) CodesForPhraseContains(phrase string) []string {
	if phrase == "" {
		return nil
	}
	needle := " " + phrase + " "
	var out []string
	for _, ph := range idx.sortedPhrases {
		if strings.Contains(" "+ph+" ", needle) {
			out = append(out, idx.phrases[ph]...)
		}
	}
	return sortStrings(dedupeStrings(out))
}

// CodesMatchingTokens returns codes hit by at least half (rounded up) of the
// given tokens.
func (idx *Index) CodesMatchingTokens(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	hits := make(map[string]int)
	for _, tok := range tokens {
		for _, code := range idx.tokens[tok] {
			hits[code]++
		}
	}
	threshold := (len(tokens) + 1) / 2
	var out []string
	for code, n := range hits {
		if n >= threshold {
			out = append(out, code)
		}
	}
	return sortStrings(out)
}

// CodesForGrams is the legacy fuzzy fallback: codes sharing a majority of the
// query's character n-grams, at least two.
func (idx *Index) CodesForGrams(text string) []string {
	grams := textutil.NGrams(text)
	if len(grams) == 0 {
		return nil
	}
	hits := make(map[string]int)
	for g := range grams {
		for _, code := range idx.grams[g] {
			hits[code]++
		}
	}
	threshold := (len(grams) + 1) / 2
	if threshold < 2 {
		threshold = 2
	}
	var out []string
	for code, n := range hits {
		if n >= threshold {
			out = append(out, code)
		}
	}
	return sortStrings(out)
}

func dedupeRefs(refs []entities.OfferRef) []entities.OfferRef {
	seen := make(map[entities.OfferRef]struct{}, len(refs))
	out := refs[:0:0]
	for _, r := range refs {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func sortRefs(refs []entities.OfferRef) []entities.OfferRef {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Code != refs[j].Code {
			return refs[i].Code < refs[j].Code
		}
		return refs[i].Ordinal < refs[j].Ordinal
	})
	return refs
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func sortStrings(in []string) []string {
	sort.Strings(in)
	return in
}

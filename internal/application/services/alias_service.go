package services

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	apperrors "github.com/ofertascauca/senabot/pkg/errors"
	"github.com/ofertascauca/senabot/pkg/textutil"
)

// AliasTable maps every spelling variant of a key to its canonical form.
// A variant can belong to exactly one canonical key; violating that at load
// time is a fatal configuration error.
type AliasTable struct {
	variantToCanon  map[string]string
	canonToVariants map[string][]string
	canonicals      []string
}

// NewAliasTable builds a table from a canonical -> variants mapping. Every
// key and variant is normalized; the canonical key always belongs to its own
// variant set.
func NewAliasTable(raw map[string][]string) (*AliasTable, error) {
	t := &AliasTable{
		variantToCanon:  make(map[string]string),
		canonToVariants: make(map[string][]string),
	}

	canonicals := make([]string, 0, len(raw))
	for canon := range raw {
		canonicals = append(canonicals, canon)
	}
	sort.Strings(canonicals)

	for _, canon := range canonicals {
		canonNorm := textutil.Normalize(canon)
		if canonNorm == "" {
			return nil, apperrors.NewValidationError("alias table has an empty canonical key")
		}
		variants := append([]string{canon}, raw[canon]...)
		for _, variant := range variants {
			v := textutil.Normalize(variant)
			if v == "" {
				continue
			}
			if owner, ok := t.variantToCanon[v]; ok {
				if owner != canonNorm {
					return nil, apperrors.NewValidationError(fmt.Sprintf(
						"alias variant %q claimed by both %q and %q", v, owner, canonNorm))
				}
				continue
			}
			t.variantToCanon[v] = canonNorm
			t.canonToVariants[canonNorm] = append(t.canonToVariants[canonNorm], v)
		}
	}

	for canon := range t.canonToVariants {
		sort.Strings(t.canonToVariants[canon])
		t.canonicals = append(t.canonicals, canon)
	}
	sort.Strings(t.canonicals)

	return t, nil
}

// LoadAliasTable reads a canonical -> variants JSON document.
func LoadAliasTable(path string) (*AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("alias config %s unreadable: %v", path, err))
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("alias config %s malformed: %v", path, err))
	}
	return NewAliasTable(raw)
}

// Resolve returns the canonical key owning normalize(text), if any.
func (t *AliasTable) Resolve(text string) (string, bool) {
	canon, ok := t.variantToCanon[textutil.Normalize(text)]
	return canon, ok
}

// VariantsOf returns every spelling of a canonical key, the key included.
func (t *AliasTable) VariantsOf(canonical string) []string {
	return t.canonToVariants[textutil.Normalize(canonical)]
}

// Canonicals returns all canonical keys in sorted order.
func (t *AliasTable) Canonicals() []string {
	return t.canonicals
}

// ResolveInText returns the canonical keys whose variants appear as
// whole-word phrases anywhere in the normalized text, in sorted order.
func (t *AliasTable) ResolveInText(norm string) []string {
	padded := " " + norm + " "
	seen := make(map[string]struct{})
	var out []string
	for _, canon := range t.canonicals {
		for _, v := range t.canonToVariants[canon] {
			if containsPhrase(padded, v) {
				if _, ok := seen[canon]; !ok {
					seen[canon] = struct{}{}
					out = append(out, canon)
				}
				break
			}
		}
	}
	return out
}

func containsPhrase(paddedText, phrase string) bool {
	return phrase != "" && strings.Contains(paddedText, " "+phrase+" ")
}

// AliasService carries the two independent alias tables: locations
// (municipalities and venues) and topics (domain vocabulary).
type AliasService struct {
	Locations *AliasTable
	Topics    *AliasTable
}

// NewAliasService loads both alias tables; either failing is fatal.
func NewAliasService(locationPath, topicPath string) (*AliasService, error) {
	locations, err := LoadAliasTable(locationPath)
	if err != nil {
		return nil, err
	}
	topics, err := LoadAliasTable(topicPath)
	if err != nil {
		return nil, err
	}
	return &AliasService{Locations: locations, Topics: topics}, nil
}

// ExpandTopics widens a token list with every synonym of any token that
// resolves in the topic table. Output is deduplicated and sorted.
func (s *AliasService) ExpandTopics(tokens []string) []string {
	seen := make(map[string]struct{})
	for _, tok := range tokens {
		seen[tok] = struct{}{}
		if canon, ok := s.Topics.Resolve(tok); ok {
			for _, v := range s.Topics.VariantsOf(canon) {
				seen[v] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for tok := range seen {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

package services

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ofertascauca/senabot/internal/catalog"
	"github.com/ofertascauca/senabot/internal/domain/entities"
	"github.com/ofertascauca/senabot/pkg/textutil"
)

var (
	codeOrdinalRe = regexp.MustCompile(`^(\d{5,7})-(\d{1,2})$`)
	codeRe        = regexp.MustCompile(`^\d{5,7}$`)
	prepTailRe    = regexp.MustCompile(`\b(en|de|sobre)\b\s+(\S.*)$`)
)

var (
	missingTermCounterOnce sync.Once
	missingTermCounter     metric.Int64Counter
)

// stopwords are filler words stripped before topic scoring. Prepositions stay
// out of the list on purpose: prepTailRe consumes them first.
var stopwords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {}, "unos": {},
	"y": {}, "o": {}, "que": {}, "con": {}, "para": {}, "por": {}, "del": {},
	"hay": {}, "hola": {}, "buenas": {}, "buenos": {}, "dias": {}, "tardes": {},
	"noches": {}, "quiero": {}, "quisiera": {}, "deseo": {}, "busco": {},
	"estudiar": {}, "ver": {}, "saber": {}, "me": {}, "mi": {}, "se": {},
	"curso": {}, "cursos": {}, "programa": {}, "programas": {}, "oferta": {},
	"ofertas": {}, "formacion": {}, "carrera": {}, "carreras": {}, "sena": {},
	"cuanto": {}, "cuanta": {}, "cuantos": {}, "cual": {}, "cuales": {},
	"como": {}, "donde": {}, "cuando": {},
}

// detailFieldVocab maps trigger words to the program field a user is asking
// about. Multi-word triggers are checked as phrases.
var detailFieldVocab = map[string]string{
	"duracion": "duracion", "dura": "duracion", "tiempo": "duracion",
	"meses": "duracion", "trimestres": "duracion",
	"requisitos": "requisitos", "requisito": "requisitos",
	"necesito": "requisitos", "papeles": "requisitos", "documentos": "requisitos",
	"perfil": "perfil", "egresado": "perfil", "salida laboral": "perfil",
	"trabajar": "perfil", "empleo": "perfil",
	"competencias": "competencias", "aprendo": "competencias",
	"aprende": "competencias", "contenidos": "competencias", "temas": "competencias",
	"certificado": "certificacion", "certificacion": "certificacion",
	"titulo": "certificacion", "diploma": "certificacion",
}

// QueryUnderstandingService turns free text into a structured QueryIntent by
// running the parse cascade: exact code forms, level keywords, prepositional
// location or topic tails, then a whole-text location scan.
type QueryUnderstandingService struct {
	index   *catalog.Index
	aliases *AliasService
}

// NewQueryUnderstandingService creates a parser bound to one catalog index.
func NewQueryUnderstandingService(index *catalog.Index, aliases *AliasService) *QueryUnderstandingService {
	return &QueryUnderstandingService{index: index, aliases: aliases}
}

// Parse interprets one message. It never fails; an unparseable message yields
// an intent whose IsEmpty is true.
func (s *QueryUnderstandingService) Parse(ctx context.Context, text string) *entities.QueryIntent {
	intent := &entities.QueryIntent{}
	norm := textutil.Normalize(text)
	if norm == "" {
		return intent
	}

	if m := codeOrdinalRe.FindStringSubmatch(norm); m != nil {
		intent.Code = m[1]
		intent.Ordinal = atoiSmall(m[2])
		return intent
	}
	if codeRe.MatchString(norm) {
		intent.Code = norm
		return intent
	}

	tokens := textutil.Tokenize(norm)
	levelWords := make(map[string]struct{})
	for _, tok := range tokens {
		if lvl, ok := entities.ParseLevel(tok); ok {
			if intent.Level == "" {
				intent.Level = lvl
			}
			levelWords[tok] = struct{}{}
		}
	}

	topicSource := norm
	if m := prepTailRe.FindStringSubmatch(norm); m != nil {
		prep, tail := m[1], strings.TrimSpace(m[2])
		switch prep {
		case "en", "de":
			if keys := s.resolveLocationPhrase(tail); len(keys) > 0 {
				s.assignLocations(intent, keys)
			} else {
				intent.TailText = tail
				topicSource = tail
			}
		case "sobre":
			intent.TailText = tail
			topicSource = tail
		}
	}

	if !intent.HasLocation() {
		if keys := s.scanLocations(norm); len(keys) > 0 {
			s.assignLocations(intent, keys)
		}
	}

	intent.TopicTokens = s.topicTokens(topicSource, levelWords, intent.LocationKeys())
	s.recordMissingTerms(ctx, intent.TopicTokens)

	return intent
}

// DetectDetailField reports which program field a normalized message asks
// about, if any.
func DetectDetailField(norm string) (string, bool) {
	padded := " " + norm + " "
	for trigger, field := range detailFieldVocab {
		if strings.Contains(padded, " "+trigger+" ") {
			return field, true
		}
	}
	return "", false
}

// resolveLocationPhrase tries a whole tail phrase as a location, directly and
// through the alias table.
func (s *QueryUnderstandingService) resolveLocationPhrase(tail string) []string {
	if s.index.HasLocationKey(tail) {
		return []string{s.canonicalKey(tail)}
	}
	if s.aliases != nil && s.aliases.Locations != nil {
		if canon, ok := s.aliases.Locations.Resolve(tail); ok && s.index.HasLocationKey(canon) {
			return []string{canon}
		}
	}
	// A tail like "sistemas en popayan" still carries a location further in.
	if m := prepTailRe.FindStringSubmatch(tail); m != nil {
		inner := strings.TrimSpace(m[2])
		if inner != tail {
			return s.resolveLocationPhrase(inner)
		}
	}
	return nil
}

// scanLocations finds location keys anywhere in the text: single tokens,
// adjacent token pairs, and alias variants.
func (s *QueryUnderstandingService) scanLocations(norm string) []string {
	seen := make(map[string]struct{})
	tokens := textutil.Tokenize(norm)
	for i, tok := range tokens {
		if s.index.HasLocationKey(tok) {
			seen[s.canonicalKey(tok)] = struct{}{}
		}
		if i+1 < len(tokens) {
			pair := tok + " " + tokens[i+1]
			if s.index.HasLocationKey(pair) {
				seen[s.canonicalKey(pair)] = struct{}{}
			}
		}
	}
	if s.aliases != nil && s.aliases.Locations != nil {
		for _, canon := range s.aliases.Locations.ResolveInText(norm) {
			if s.index.HasLocationKey(canon) {
				seen[canon] = struct{}{}
			}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// canonicalKey collapses an alias variant to its canonical location key.
func (s *QueryUnderstandingService) canonicalKey(key string) string {
	if s.aliases != nil && s.aliases.Locations != nil {
		if canon, ok := s.aliases.Locations.Resolve(key); ok && s.index.HasLocationKey(canon) {
			return canon
		}
	}
	return key
}

// assignLocations splits resolved keys into municipalities or venues.
// Municipalities win when both kinds show up.
func (s *QueryUnderstandingService) assignLocations(intent *entities.QueryIntent, keys []string) {
	var munis, venues []string
	for _, k := range keys {
		switch {
		case s.index.IsMunicipalityKey(k):
			munis = append(munis, k)
		case s.index.IsVenueKey(k):
			venues = append(venues, k)
		}
	}
	if len(munis) > 0 {
		intent.Municipalities = munis
		return
	}
	intent.Venues = venues
}

// topicTokens strips stopwords, level words, and location words, then expands
// what is left through the topic synonym table.
func (s *QueryUnderstandingService) topicTokens(source string, levelWords map[string]struct{}, locationKeys []string) []string {
	locationWords := make(map[string]struct{})
	for _, key := range locationKeys {
		for _, w := range strings.Fields(key) {
			locationWords[w] = struct{}{}
		}
	}

	var kept []string
	for _, tok := range textutil.Tokenize(source) {
		if _, ok := stopwords[tok]; ok {
			continue
		}
		if _, ok := levelWords[tok]; ok {
			continue
		}
		if _, ok := locationWords[tok]; ok {
			continue
		}
		if tok == "en" || tok == "de" || tok == "sobre" {
			continue
		}
		if codeRe.MatchString(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return nil
	}
	if s.aliases != nil && s.aliases.Topics != nil {
		return s.aliases.ExpandTopics(kept)
	}
	sort.Strings(kept)
	return dedupe(kept)
}

func (s *QueryUnderstandingService) recordMissingTerms(ctx context.Context, tokens []string) {
	var missing []string
	for _, tok := range tokens {
		if len(tok) < 3 || strings.Contains(tok, " ") {
			continue
		}
		if len(s.index.CodesMatchingTokens([]string{tok})) == 0 {
			missing = append(missing, tok)
		}
	}
	if len(missing) == 0 {
		return
	}
	missingTermCounterOnce.Do(initMissingTermCounter)
	if missingTermCounter == nil {
		return
	}
	for _, term := range missing {
		missingTermCounter.Add(ctx, 1,
			metric.WithAttributes(attribute.String("search.term", term)))
	}
}

func initMissingTermCounter() {
	meter := otel.Meter("github.com/ofertascauca/senabot/query_understanding")
	counter, err := meter.Int64Counter(
		"search.term_not_found.count",
		metric.WithDescription("Count of query terms not found in the catalog index"),
	)
	if err == nil {
		missingTermCounter = counter
	}
}

func atoiSmall(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

func dedupe(in []string) []string {
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

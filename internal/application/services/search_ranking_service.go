package services

import (
	"sort"

	"github.com/ofertascauca/senabot/internal/catalog"
	"github.com/ofertascauca/senabot/internal/domain/entities"
)

// ScoredResult is one ranked offer with its score breakdown.
type ScoredResult struct {
	Ref            entities.OfferRef
	Program        *entities.Program
	Score          int
	ScoreBreakdown map[string]int
}

// SearchRankingService retrieves candidate offers for a parsed intent and
// ranks them. Scoring is additive over integer weights so ties are exact and
// the final order is fully deterministic.
type SearchRankingService struct {
	index *catalog.Index

	wLevel      int
	wLocation   int
	wTopicToken int
	topicCap    int
	wPhrase     int
}

func NewSearchRankingService(index *catalog.Index) *SearchRankingService {
	return &SearchRankingService{
		index:       index,
		wLevel:      2,
		wLocation:   3,
		wTopicToken: 1,
		topicCap:    4,
		wPhrase:     5,
	}
}

// Rank runs retrieval then scoring for one intent. An empty result means the
// catalog honestly has nothing for the constraints; callers must not pad it.
func (s *SearchRankingService) Rank(intent *entities.QueryIntent) []ScoredResult {
	if s.index.Empty() || intent == nil {
		return nil
	}

	candidates := s.retrieve(intent)
	if len(candidates) == 0 {
		return nil
	}

	scored := make([]ScoredResult, 0, len(candidates))
	for _, ref := range candidates {
		p, ok := s.index.Catalog().ByCode(ref.Code)
		if !ok {
			continue
		}
		score, breakdown := s.score(p, ref, intent)
		scored = append(scored, ScoredResult{
			Ref:            ref,
			Program:        p,
			Score:          score,
			ScoreBreakdown: breakdown,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Program.NameNorm != scored[j].Program.NameNorm {
			return scored[i].Program.NameNorm < scored[j].Program.NameNorm
		}
		if scored[i].Ref.Code != scored[j].Ref.Code {
			return scored[i].Ref.Code < scored[j].Ref.Code
		}
		return scored[i].Ref.Ordinal < scored[j].Ref.Ordinal
	})

	return scored
}

// TopCodes returns the distinct program codes of the ranked results, best
// first, capped at limit.
func (s *SearchRankingService) TopCodes(intent *entities.QueryIntent, limit int) []string {
	var codes []string
	seen := make(map[string]struct{})
	for _, r := range s.Rank(intent) {
		if _, ok := seen[r.Ref.Code]; ok {
			continue
		}
		seen[r.Ref.Code] = struct{}{}
		codes = append(codes, r.Ref.Code)
		if limit > 0 && len(codes) >= limit {
			break
		}
	}
	return codes
}

// retrieve builds the candidate offer set for the intent. Location postings
// seed the set when present; topic and level constraints intersect an
// existing seed or seed on their own. When everything comes up empty and the
// query named no location and no topic, the whole catalog is listed, one
// offer per program; a location or topic that yielded nothing stays empty.
func (s *SearchRankingService) retrieve(intent *entities.QueryIntent) []entities.OfferRef {
	if intent.Code != "" {
		return s.retrieveByCode(intent)
	}

	var refs []entities.OfferRef
	hasTopic := len(intent.TopicTokens) > 0 || intent.TailText != ""

	if intent.HasLocation() {
		refs = s.index.PostingsFor(intent.LocationKeys())
	}

	if hasTopic {
		codes := s.topicCodes(intent)
		if intent.HasLocation() {
			refs = filterByCodes(refs, codes)
		} else {
			refs = firstOfferPerCode(s.index.Catalog(), codes)
		}
	}

	if intent.Level != "" {
		if intent.HasLocation() || hasTopic {
			refs = s.filterByLevel(refs, intent.Level)
		} else {
			refs = s.offersForLevel(intent.Level)
		}
	}

	if len(refs) == 0 && !intent.HasLocation() && !hasTopic {
		return s.allPrograms()
	}
	return refs
}

func (s *SearchRankingService) retrieveByCode(intent *entities.QueryIntent) []entities.OfferRef {
	p, ok := s.index.Catalog().ByCode(intent.Code)
	if !ok {
		return nil
	}
	if intent.Ordinal > 0 {
		if _, ok := p.OfferByOrdinal(intent.Ordinal); !ok {
			return nil
		}
		return []entities.OfferRef{{Code: p.Code, Ordinal: intent.Ordinal}}
	}
	refs := make([]entities.OfferRef, 0, len(p.Offers))
	for _, o := range p.Offers {
		refs = append(refs, entities.OfferRef{Code: p.Code, Ordinal: o.Ordinal})
	}
	return refs
}

// topicCodes unions phrase containment, token coverage, and the n-gram
// fallback into one sorted code set.
func (s *SearchRankingService) topicCodes(intent *entities.QueryIntent) map[string]struct{} {
	codes := make(map[string]struct{})
	if intent.TailText != "" {
		for _, c := range s.index.CodesForPhraseContains(intent.TailText) {
			codes[c] = struct{}{}
		}
	}
	for _, c := range s.index.CodesMatchingTokens(intent.TopicTokens) {
		codes[c] = struct{}{}
	}
	if len(codes) == 0 && intent.TailText != "" {
		for _, c := range s.index.CodesForGrams(intent.TailText) {
			codes[c] = struct{}{}
		}
	}
	return codes
}

func (s *SearchRankingService) filterByLevel(refs []entities.OfferRef, level entities.Level) []entities.OfferRef {
	out := refs[:0:0]
	for _, r := range refs {
		if p, ok := s.index.Catalog().ByCode(r.Code); ok && p.Level == level {
			out = append(out, r)
		}
	}
	return out
}

// offersForLevel seeds one offer per program of the level, so a bare level
// query lists each program once rather than once per municipality.
func (s *SearchRankingService) offersForLevel(level entities.Level) []entities.OfferRef {
	var out []entities.OfferRef
	for _, p := range s.index.Catalog().Programs() {
		if p.Level != level {
			continue
		}
		out = append(out, firstOffer(p))
	}
	return out
}

// allPrograms is the bare "list everything" fallback: one offer per program
// over the whole catalog.
func (s *SearchRankingService) allPrograms() []entities.OfferRef {
	programs := s.index.Catalog().Programs()
	out := make([]entities.OfferRef, 0, len(programs))
	for _, p := range programs {
		out = append(out, firstOffer(p))
	}
	return out
}

func firstOffer(p *entities.Program) entities.OfferRef {
	if len(p.Offers) == 0 {
		return entities.OfferRef{Code: p.Code, Ordinal: 0}
	}
	min := p.Offers[0].Ordinal
	for _, o := range p.Offers[1:] {
		if o.Ordinal < min {
			min = o.Ordinal
		}
	}
	return entities.OfferRef{Code: p.Code, Ordinal: min}
}

func (s *SearchRankingService) score(p *entities.Program, ref entities.OfferRef, intent *entities.QueryIntent) (int, map[string]int) {
	breakdown := make(map[string]int)

	if intent.Level != "" && p.Level == intent.Level {
		breakdown["level"] = s.wLevel
	}

	if intent.HasLocation() {
		if offer, ok := p.OfferByOrdinal(ref.Ordinal); ok && s.offerMatchesLocation(offer, intent) {
			breakdown["location"] = s.wLocation
		}
	}

	topic := 0
	for _, tok := range intent.TopicTokens {
		if p.BagContains(tok) {
			topic += s.wTopicToken
		}
	}
	if topic > s.topicCap {
		topic = s.topicCap
	}
	if topic > 0 {
		breakdown["topic"] = topic
	}

	if intent.TailText != "" && p.NameNorm != "" && containsPhrase(" "+p.NameNorm+" ", intent.TailText) {
		breakdown["phrase"] = s.wPhrase
	}

	total := 0
	for _, v := range breakdown {
		total += v
	}
	return total, breakdown
}

func (s *SearchRankingService) offerMatchesLocation(o *entities.Offer, intent *entities.QueryIntent) bool {
	for _, key := range intent.Municipalities {
		if o.MunicipalityNorm == key || o.MunicipalityBase == key {
			return true
		}
	}
	for _, key := range intent.Venues {
		if o.VenueNorm == key {
			return true
		}
	}
	return false
}

func filterByCodes(refs []entities.OfferRef, codes map[string]struct{}) []entities.OfferRef {
	out := refs[:0:0]
	for _, r := range refs {
		if _, ok := codes[r.Code]; ok {
			out = append(out, r)
		}
	}
	return out
}

// firstOfferPerCode yields each code's lowest-ordinal offer, sorted by code.
// Programs without offers are represented by ordinal zero so they remain
// reachable in topic-only listings.
func firstOfferPerCode(c *catalog.Catalog, codes map[string]struct{}) []entities.OfferRef {
	sorted := make([]string, 0, len(codes))
	for code := range codes {
		sorted = append(sorted, code)
	}
	sort.Strings(sorted)

	var out []entities.OfferRef
	for _, code := range sorted {
		p, ok := c.ByCode(code)
		if !ok {
			continue
		}
		out = append(out, firstOffer(p))
	}
	return out
}

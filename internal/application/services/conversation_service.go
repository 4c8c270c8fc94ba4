package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ofertascauca/senabot/internal/catalog"
	"github.com/ofertascauca/senabot/internal/domain/entities"
	"github.com/ofertascauca/senabot/internal/domain/providers"
	"github.com/ofertascauca/senabot/internal/infrastructure/observability"
	"github.com/ofertascauca/senabot/pkg/textutil"
)

var greetingWords = []string{
	"hola", "buenos dias", "buenas tardes", "buenas noches", "saludos",
	"hi", "hello", "hla", "bnas", "buenas",
}

var helpWords = []string{
	"ayuda", "que puedes hacer", "opciones", "como buscar", "como funcionas",
}

var seeMoreWords = map[string]struct{}{
	"mas": {}, "ver mas": {}, "siguiente": {}, "more": {},
}

var seeAllWords = map[string]struct{}{
	"ver todos": {}, "ver todo": {}, "todos": {},
}

// ConversationService routes one inbound message to a reply. It owns the
// pagination cursor; parsing, retrieval, and rendering are delegated.
type ConversationService struct {
	index     *catalog.Index
	parser    *QueryUnderstandingService
	ranker    *SearchRankingService
	responder *ResponseService
	cursors   providers.CursorStore
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func NewConversationService(
	index *catalog.Index,
	parser *QueryUnderstandingService,
	ranker *SearchRankingService,
	responder *ResponseService,
	cursors providers.CursorStore,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *ConversationService {
	return &ConversationService{
		index:     index,
		parser:    parser,
		ranker:    ranker,
		responder: responder,
		cursors:   cursors,
		metrics:   metrics,
		logger:    logger,
	}
}

// HandleMessage produces the reply for one message in one conversation.
func (s *ConversationService) HandleMessage(ctx context.Context, conversationID, text string) string {
	// token-join so "Hola!" and "233104." read the same as their bare forms;
	// a pure-punctuation message normalizes to empty
	norm := strings.Join(textutil.Tokenize(text), " ")
	if norm == "" {
		return s.responder.EmptyPrompt()
	}
	if s.index.Empty() {
		return s.responder.CatalogUnavailable()
	}

	if containsAny(norm, greetingWords) {
		return s.responder.Greeting()
	}
	if containsAny(norm, helpWords) {
		return s.responder.Help()
	}

	if _, ok := seeMoreWords[norm]; ok {
		return s.nextPage(ctx, conversationID)
	}
	if _, ok := seeAllWords[norm]; ok {
		return s.showAll(ctx, conversationID)
	}

	if n, ok := pageNumber(norm); ok {
		return s.selectFromPage(ctx, conversationID, n)
	}

	if field, ok := DetectDetailField(norm); ok {
		return s.detailField(ctx, norm, field)
	}

	return s.search(ctx, conversationID, text, norm)
}

// Respond is the stateless query entry point: parse, rank, render one page.
// A pageSize of zero or less uses the default page size.
func (s *ConversationService) Respond(ctx context.Context, text string, showAll bool, page, pageSize int) string {
	if pageSize <= 0 {
		pageSize = s.responder.PageSize()
	}
	if s.index.Empty() {
		return s.responder.CatalogUnavailable()
	}
	norm := strings.Join(textutil.Tokenize(text), " ")
	if norm == "" {
		return s.responder.EmptyPrompt()
	}
	if containsAny(norm, greetingWords) {
		return s.responder.Greeting()
	}
	if containsAny(norm, helpWords) {
		return s.responder.Help()
	}

	intent := s.parser.Parse(ctx, norm)
	if intent.Code != "" {
		if intent.Ordinal > 0 {
			return s.RenderByCodeAndOrdinal(intent.Code, intent.Ordinal)
		}
		return s.RenderByCode(intent.Code)
	}

	results := s.ranker.Rank(intent)
	if len(results) == 0 {
		observability.RecordEmptySearch(ctx, s.metrics)
		return s.responder.NoResults(text, s.examplePrograms())
	}

	return s.renderPage(results, intent, page, pageSize, showAll, false)
}

// RenderByCode renders the full sheet for a single-offer program, or the
// offer disambiguation menu when the code has several.
func (s *ConversationService) RenderByCode(code string) string {
	p, ok := s.index.Catalog().ByCode(code)
	if !ok {
		return s.responder.UnknownCode(code)
	}
	if len(p.Offers) > 1 {
		return s.responder.DisambiguationMenu(p)
	}
	return s.responder.DetailSheet(p, 0)
}

// RenderByCodeAndOrdinal renders the sheet for one concrete offer.
func (s *ConversationService) RenderByCodeAndOrdinal(code string, ordinal int) string {
	p, ok := s.index.Catalog().ByCode(code)
	if !ok {
		return s.responder.UnknownCode(code)
	}
	if _, ok := p.OfferByOrdinal(ordinal); !ok {
		return s.responder.UnknownOrdinal(p, ordinal)
	}
	return s.responder.DetailSheet(p, ordinal)
}

// TopCodesFor returns the best-matching program codes for a query.
func (s *ConversationService) TopCodesFor(ctx context.Context, text string, limit int) []string {
	if s.index.Empty() {
		return nil
	}
	intent := s.parser.Parse(ctx, text)
	if intent.Code != "" {
		if _, ok := s.index.Catalog().ByCode(intent.Code); ok {
			return []string{intent.Code}
		}
		return nil
	}
	if intent.IsEmpty() {
		return nil
	}
	return s.ranker.TopCodes(intent, limit)
}

func (s *ConversationService) search(ctx context.Context, conversationID, original, norm string) string {
	intent := s.parser.Parse(ctx, norm)

	if intent.Code != "" {
		if intent.Ordinal > 0 {
			s.dropCursor(ctx, conversationID)
			return s.RenderByCodeAndOrdinal(intent.Code, intent.Ordinal)
		}
		return s.renderCode(ctx, conversationID, intent.Code, norm)
	}

	results := s.ranker.Rank(intent)
	if len(results) == 0 {
		s.dropCursor(ctx, conversationID)
		observability.RecordEmptySearch(ctx, s.metrics)
		return s.responder.NoResults(original, s.examplePrograms())
	}

	refs := make([]entities.OfferRef, len(results))
	for i, r := range results {
		refs[i] = r.Ref
	}
	cursor := &entities.Cursor{
		Query:     norm,
		Page:      0,
		Results:   refs,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.cursors.Put(ctx, conversationID, cursor); err != nil {
		s.logger.Warn().Err(err).Str("conversation", conversationID).Msg("failed to store cursor")
	}

	return s.renderPage(results, intent, 0, s.responder.PageSize(), false, false)
}

// renderCode answers a code-only query. A multi-offer program keeps a
// cursor over its offers so "más" and numeric selection keep working after
// the disambiguation menu.
func (s *ConversationService) renderCode(ctx context.Context, conversationID, code, norm string) string {
	p, ok := s.index.Catalog().ByCode(code)
	if !ok {
		s.dropCursor(ctx, conversationID)
		return s.responder.UnknownCode(code)
	}
	if len(p.Offers) <= 1 {
		s.dropCursor(ctx, conversationID)
		return s.responder.DetailSheet(p, 0)
	}

	refs := make([]entities.OfferRef, len(p.Offers))
	for i, o := range p.Offers {
		refs[i] = entities.OfferRef{Code: p.Code, Ordinal: o.Ordinal}
	}
	cursor := &entities.Cursor{
		Query:     norm,
		Page:      0,
		Results:   refs,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.cursors.Put(ctx, conversationID, cursor); err != nil {
		s.logger.Warn().Err(err).Str("conversation", conversationID).Msg("failed to store cursor")
	}
	return s.responder.DisambiguationMenu(p)
}

// nextPage advances the cursor. Past the last page it stays on the final
// page and says there is nothing more.
func (s *ConversationService) nextPage(ctx context.Context, conversationID string) string {
	cursor, err := s.cursors.Get(ctx, conversationID)
	if err != nil {
		return s.noActiveSearch()
	}

	pageSize := s.responder.PageSize()
	pages := cursor.PageCount(pageSize)
	atEnd := false

	cursor.Page++
	if cursor.Page >= pages {
		cursor.Page = pages - 1
		atEnd = true
	}
	cursor.UpdatedAt = time.Now().UTC()
	if err := s.cursors.Put(ctx, conversationID, cursor); err != nil {
		s.logger.Warn().Err(err).Str("conversation", conversationID).Msg("failed to store cursor")
	}

	intent := s.parser.Parse(ctx, cursor.Query)
	return s.renderPage(s.resultsFromRefs(cursor.Results), intent, cursor.Page, s.responder.PageSize(), false, atEnd)
}

func (s *ConversationService) showAll(ctx context.Context, conversationID string) string {
	cursor, err := s.cursors.Get(ctx, conversationID)
	if err != nil {
		return s.noActiveSearch()
	}
	intent := s.parser.Parse(ctx, cursor.Query)
	return s.renderPage(s.resultsFromRefs(cursor.Results), intent, 0, s.responder.PageSize(), true, false)
}

// selectFromPage resolves a bare number against the cursor's visible page.
func (s *ConversationService) selectFromPage(ctx context.Context, conversationID string, n int) string {
	cursor, err := s.cursors.Get(ctx, conversationID)
	if err != nil {
		return s.noActiveSearch()
	}
	slice := cursor.PageSlice(s.responder.PageSize())
	if n < 1 || n > len(slice) {
		return s.noActiveSearch()
	}
	ref := slice[n-1]
	if ref.Ordinal > 0 {
		return s.RenderByCodeAndOrdinal(ref.Code, ref.Ordinal)
	}
	return s.RenderByCode(ref.Code)
}

// detailField answers a field question. An explicit code pins one program;
// otherwise the rest of the message is ranked like a search and the answer
// covers the matching programs.
func (s *ConversationService) detailField(ctx context.Context, norm, field string) string {
	stripped := " " + norm + " "
	for trigger := range detailFieldVocab {
		if strings.Contains(trigger, " ") {
			stripped = strings.ReplaceAll(stripped, " "+trigger+" ", " ")
		}
	}

	var rest []string
	for _, tok := range textutil.Tokenize(stripped) {
		if codeRe.MatchString(tok) {
			p, ok := s.index.Catalog().ByCode(tok)
			if !ok {
				return s.responder.UnknownCode(tok)
			}
			return s.responder.FieldAnswer(p, field)
		}
		if _, isTrigger := detailFieldVocab[tok]; isTrigger {
			continue
		}
		rest = append(rest, tok)
	}

	// Rank the remaining words like any other search so level, location and
	// topic words keep narrowing which programs the answer covers.
	intent := s.parser.Parse(ctx, strings.Join(rest, " "))
	var programs []*entities.Program
	seen := make(map[string]struct{})
	for _, r := range s.ranker.Rank(intent) {
		if _, dup := seen[r.Ref.Code]; dup {
			continue
		}
		seen[r.Ref.Code] = struct{}{}
		programs = append(programs, r.Program)
		if len(programs) == maxFieldExamples {
			break
		}
	}

	switch len(programs) {
	case 0:
		return "❌ No pude identificar el programa.\n" +
			"Pide así: “requisitos 134104” o “requisitos nombre del programa”."
	case 1:
		return s.responder.FieldAnswer(programs[0], field)
	}
	return s.responder.FieldSummary(field, programs)
}

func (s *ConversationService) renderPage(results []ScoredResult, intent *entities.QueryIntent, page, pageSize int, showAll, atEnd bool) string {
	total := len(results)

	if showAll {
		return s.responder.Listing(ListingPage{
			Results: results,
			Page:    1,
			Pages:   1,
			Total:   total,
			AtEnd:   false,
		}, intent)
	}

	pages := (total + pageSize - 1) / pageSize
	if page >= pages {
		page = pages - 1
		atEnd = true
	}
	if page < 0 {
		page = 0
	}
	start := page * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}

	return s.responder.Listing(ListingPage{
		Results: results[start:end],
		Page:    page + 1,
		Pages:   pages,
		Total:   total,
		AtEnd:   atEnd,
	}, intent)
}

func (s *ConversationService) resultsFromRefs(refs []entities.OfferRef) []ScoredResult {
	out := make([]ScoredResult, 0, len(refs))
	for _, ref := range refs {
		p, ok := s.index.Catalog().ByCode(ref.Code)
		if !ok {
			continue
		}
		out = append(out, ScoredResult{Ref: ref, Program: p})
	}
	return out
}

func (s *ConversationService) examplePrograms() []*entities.Program {
	programs := s.index.Catalog().Programs()
	if len(programs) > 3 {
		programs = programs[:3]
	}
	return programs
}

func (s *ConversationService) dropCursor(ctx context.Context, conversationID string) {
	if err := s.cursors.Delete(ctx, conversationID); err != nil {
		s.logger.Warn().Err(err).Str("conversation", conversationID).Msg("failed to drop cursor")
	}
}

func (s *ConversationService) noActiveSearch() string {
	return "No tengo una búsqueda activa. Escribe qué programa buscas, por ejemplo 'tecnologo en sistemas'."
}

func containsAny(norm string, words []string) bool {
	padded := " " + norm + " "
	for _, w := range words {
		if strings.Contains(padded, " "+w+" ") {
			return true
		}
	}
	return false
}

func pageNumber(norm string) (int, bool) {
	if len(norm) != 1 || norm[0] < '1' || norm[0] > '9' {
		return 0, false
	}
	return int(norm[0] - '0'), true
}

package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ofertascauca/senabot/internal/adapters/cache"
	"github.com/ofertascauca/senabot/internal/catalog"
	"github.com/ofertascauca/senabot/internal/domain/entities"
)

func testConversation(t *testing.T, programs []*entities.Program) *ConversationService {
	t.Helper()
	aliases := testAliasService(t)
	idx := catalog.BuildIndex(catalog.NewCatalog(programs), aliases.Locations)
	parser := NewQueryUnderstandingService(idx, aliases)
	ranker := NewSearchRankingService(idx)
	responder := NewResponseService()
	cursors := cache.NewMemoryCursorStore(0)
	return NewConversationService(idx, parser, ranker, responder, cursors, nil, zerolog.Nop())
}

// manyPrograms builds enough single-offer programs in one municipality to
// span several listing pages.
func manyPrograms(n int) []*entities.Program {
	var out []*entities.Program
	for i := 0; i < n; i++ {
		out = append(out, &entities.Program{
			Code:  fmt.Sprintf("20%04d", i+1),
			Name:  fmt.Sprintf("Técnico en Oficio %02d", i+1),
			Level: entities.LevelTecnico,
			Offers: []entities.Offer{
				{Ordinal: 1, Municipality: "Popayán", Schedule: "Diurna"},
			},
		})
	}
	return out
}

func TestHandleMessageGreetingAndHelp(t *testing.T) {
	svc := testConversation(t, testPrograms())
	ctx := context.Background()

	if out := svc.HandleMessage(ctx, "c1", "Hola!"); !strings.Contains(out, "asistente SENA") {
		t.Errorf("greeting = %s", out)
	}
	if out := svc.HandleMessage(ctx, "c1", "ayuda"); !strings.Contains(out, "Puedo buscar por nombre") {
		t.Errorf("help = %s", out)
	}
	if out := svc.HandleMessage(ctx, "c1", "   "); !strings.Contains(out, "No entendí") {
		t.Errorf("empty = %s", out)
	}
}

func TestHandleMessageLevelLocationThenSelect(t *testing.T) {
	svc := testConversation(t, testPrograms())
	ctx := context.Background()

	out := svc.HandleMessage(ctx, "c1", "tecnólogo en Popayán")
	if !strings.Contains(out, "1. Tecnólogo en Análisis y Desarrollo de Software") {
		t.Fatalf("listing = %s", out)
	}
	if !strings.Contains(out, "[233104-1]") || !strings.Contains(out, "[233104-2]") {
		t.Errorf("listing missing offer addresses:\n%s", out)
	}

	sheet := svc.HandleMessage(ctx, "c1", "1")
	if !strings.Contains(sheet, "📘") || !strings.Contains(sheet, "🏙️ Popayán") {
		t.Errorf("selection 1 = %s", sheet)
	}

	// out-of-range selection on the visible page
	if out := svc.HandleMessage(ctx, "c1", "9"); !strings.Contains(out, "búsqueda activa") {
		t.Errorf("out-of-range selection = %s", out)
	}
}

func TestHandleMessageHonestEmpty(t *testing.T) {
	svc := testConversation(t, testPrograms())
	out := svc.HandleMessage(context.Background(), "c1", "astronomía en Guapi")

	if !strings.Contains(out, "❌ No encontré coincidencias") {
		t.Errorf("expected honest empty, got:\n%s", out)
	}
	if strings.Contains(out, "Cocina") && strings.Contains(out, "1.") {
		t.Errorf("empty answer must not smuggle a listing:\n%s", out)
	}
}

func TestHandleMessageCodeAndOrdinal(t *testing.T) {
	svc := testConversation(t, testPrograms())
	ctx := context.Background()

	sheet := svc.HandleMessage(ctx, "c1", "233104-2")
	if !strings.Contains(sheet, "El Tambo") && !strings.Contains(sheet, "zona rural") {
		t.Errorf("ordinal sheet = %s", sheet)
	}

	if out := svc.HandleMessage(ctx, "c1", "233104-9"); !strings.Contains(out, "no tiene una oferta #9") {
		t.Errorf("unknown ordinal = %s", out)
	}
	if out := svc.HandleMessage(ctx, "c1", "999999"); !strings.Contains(out, "No encontré un programa") {
		t.Errorf("unknown code = %s", out)
	}
}

func TestHandleMessagePagination(t *testing.T) {
	svc := testConversation(t, manyPrograms(12))
	ctx := context.Background()

	page1 := svc.HandleMessage(ctx, "c1", "tecnicos en popayan")
	if !strings.Contains(page1, "Página 1 de 3 (12 resultados).") {
		t.Fatalf("page1 = %s", page1)
	}

	page2 := svc.HandleMessage(ctx, "c1", "mas")
	if !strings.Contains(page2, "Página 2 de 3") {
		t.Fatalf("page2 = %s", page2)
	}

	// pages are disjoint
	if strings.Contains(page2, "Oficio 01") {
		t.Error("page 2 repeats page 1 entries")
	}
	if !strings.Contains(page2, "Oficio 06") {
		t.Errorf("page 2 missing expected entry:\n%s", page2)
	}

	page3 := svc.HandleMessage(ctx, "c1", "ver mas")
	if !strings.Contains(page3, "Página 3 de 3") {
		t.Fatalf("page3 = %s", page3)
	}

	// past the end stays on the final page with an end note
	again := svc.HandleMessage(ctx, "c1", "mas")
	if !strings.Contains(again, "Página 3 de 3") || !strings.Contains(again, "No hay más resultados.") {
		t.Errorf("past-end page = %s", again)
	}
}

func TestHandleMessageSeeAll(t *testing.T) {
	svc := testConversation(t, manyPrograms(7))
	ctx := context.Background()

	svc.HandleMessage(ctx, "c1", "tecnicos en popayan")
	all := svc.HandleMessage(ctx, "c1", "ver todos")

	for i := 1; i <= 7; i++ {
		if !strings.Contains(all, fmt.Sprintf("Oficio %02d", i)) {
			t.Errorf("ver todos missing entry %d:\n%s", i, all)
		}
	}
}

func TestHandleMessageSeeMoreWithoutSearch(t *testing.T) {
	svc := testConversation(t, testPrograms())
	out := svc.HandleMessage(context.Background(), "c1", "mas")
	if !strings.Contains(out, "búsqueda activa") {
		t.Errorf("see-more without cursor = %s", out)
	}
}

func TestHandleMessageConversationIsolation(t *testing.T) {
	svc := testConversation(t, manyPrograms(12))
	ctx := context.Background()

	svc.HandleMessage(ctx, "alice", "tecnicos en popayan")
	svc.HandleMessage(ctx, "alice", "mas")

	// bob never searched; alice's cursor must not leak
	out := svc.HandleMessage(ctx, "bob", "mas")
	if !strings.Contains(out, "búsqueda activa") {
		t.Errorf("bob saw alice's cursor: %s", out)
	}
}

func TestHandleMessageDetailField(t *testing.T) {
	svc := testConversation(t, testPrograms())
	ctx := context.Background()

	// the fixture has no requirements loaded, so the honest no-data line shows
	out := svc.HandleMessage(ctx, "c1", "requisitos 134104")
	if !strings.Contains(out, "Técnico en Cocina") || !strings.Contains(out, "Requisitos:") {
		t.Errorf("field by code = %s", out)
	}

	out = svc.HandleMessage(ctx, "c1", "requisitos 424242")
	if !strings.Contains(out, "No encontré un programa") {
		t.Errorf("field with unknown code = %s", out)
	}
}

func TestHandleMessageBareCodeWithSeveralOffers(t *testing.T) {
	svc := testConversation(t, testPrograms())
	ctx := context.Background()

	out := svc.HandleMessage(ctx, "c1", "233104")
	for _, want := range []string{
		"tiene 2 ofertas",
		"Código [233104-1]", "Código [233104-2]",
		"Popayán", "Popayán — zona rural",
		"Diurna", "Mixta",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("menu missing %q:\n%s", want, out)
		}
	}

	// replying with a listed number resolves to that offer's sheet
	out = svc.HandleMessage(ctx, "c1", "2")
	if !strings.Contains(out, "Popayán — zona rural") {
		t.Errorf("selection after menu = %s", out)
	}
}

func TestHandleMessageEmptyQueryListsCatalog(t *testing.T) {
	svc := testConversation(t, testPrograms())
	ctx := context.Background()

	out := svc.HandleMessage(ctx, "c1", "quiero estudiar")
	for _, code := range []string{"233104", "134104", "998877"} {
		if !strings.Contains(out, code) {
			t.Errorf("catalog listing missing %s:\n%s", code, out)
		}
	}
}

func TestHandleMessageDetailFieldAcrossPrograms(t *testing.T) {
	programs := testPrograms()
	programs[0].Duration = "24 meses"
	programs[1].Duration = "12 meses"
	programs[2].Duration = "24 meses"
	svc := testConversation(t, programs)
	ctx := context.Background()

	out := svc.HandleMessage(ctx, "c1", "cuanto dura")
	if !strings.Contains(out, "📋 *Duración*") {
		t.Fatalf("cross-program summary expected:\n%s", out)
	}
	if !strings.Contains(out, "12 meses") {
		t.Errorf("summary missing a distinct duration:\n%s", out)
	}
	if strings.Count(out, "24 meses") != 1 {
		t.Errorf("repeated duration should appear once:\n%s", out)
	}

	// a level word narrows the summary to the matching program
	out = svc.HandleMessage(ctx, "c1", "duracion tecnico")
	if !strings.Contains(out, "Técnico en Cocina") || !strings.Contains(out, "12 meses") {
		t.Errorf("filtered field answer = %s", out)
	}
}

func TestHandleMessageDeterministicBytes(t *testing.T) {
	svc := testConversation(t, testPrograms())
	ctx := context.Background()

	first := svc.HandleMessage(ctx, "c1", "cursos en popayan")
	for i := 0; i < 5; i++ {
		again := svc.HandleMessage(ctx, "c2", "cursos en popayan")
		if first != again {
			t.Fatalf("reply %d differs:\n%s\nvs\n%s", i, first, again)
		}
	}
}

func TestRespondStateless(t *testing.T) {
	svc := testConversation(t, manyPrograms(12))
	ctx := context.Background()

	out := svc.Respond(ctx, "tecnicos en popayan", false, 1, 0)
	if !strings.Contains(out, "Página 2 de 3") {
		t.Errorf("respond page 2 = %s", out)
	}

	all := svc.Respond(ctx, "tecnicos en popayan", true, 0, 0)
	if !strings.Contains(all, "Oficio 12") {
		t.Errorf("respond show-all missing tail entry:\n%s", all)
	}

	sheet := svc.Respond(ctx, "233104", false, 0, 0)
	if !strings.Contains(sheet, "No encontré un programa") {
		// 233104 is not in manyPrograms
		t.Errorf("respond by unknown code = %s", sheet)
	}

	wide := svc.Respond(ctx, "tecnicos en popayan", false, 0, 12)
	if !strings.Contains(wide, "Oficio 12") || strings.Contains(wide, "Página") {
		t.Errorf("respond with custom page size should fit all results:\n%s", wide)
	}
}

func TestTopCodesFor(t *testing.T) {
	svc := testConversation(t, testPrograms())
	ctx := context.Background()

	codes := svc.TopCodesFor(ctx, "cursos sobre sistemas", 3)
	if len(codes) != 1 || codes[0] != "233104" {
		t.Errorf("top codes = %v", codes)
	}

	if codes := svc.TopCodesFor(ctx, "134104", 3); len(codes) != 1 || codes[0] != "134104" {
		t.Errorf("top codes by code = %v", codes)
	}

	if codes := svc.TopCodesFor(ctx, "asdfghjkl", 3); len(codes) != 0 {
		t.Errorf("top codes for noise = %v", codes)
	}
}

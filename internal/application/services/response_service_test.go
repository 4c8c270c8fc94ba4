package services

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ofertascauca/senabot/internal/domain/entities"
)

func sampleProgram() *entities.Program {
	return &entities.Program{
		Code:            "233104",
		Name:            "Tecnólogo en Análisis y Desarrollo de Software",
		Level:           entities.LevelTecnologo,
		Duration:        "24 meses",
		Requirements:    []string{"Grado 11", "Documento de identidad"},
		GraduateProfile: "Desarrolla software a la medida.",
		Competencies:    []string{"Programar aplicaciones", "Modelar datos"},
		Certification:   "Tecnólogo en ADSO",
		Offers: []entities.Offer{
			{Ordinal: 1, Municipality: "Popayán", Venue: "Sede Norte", Schedule: "Diurna"},
			{Ordinal: 2, Municipality: "El Tambo", Schedule: "Mixta"},
		},
	}
}

func TestDetailSheetWithOffer(t *testing.T) {
	svc := NewResponseService()
	out := svc.DetailSheet(sampleProgram(), 1)

	for _, want := range []string{
		"📘 *Tecnólogo en Análisis y Desarrollo de Software*",
		"Código [233104]",
		"🏙️ Popayán",
		"🏫 Sede Norte",
		"🕒 Diurna",
		"◾ *Duración:*\n24 meses",
		"◾ *Requisitos:*\n• Grado 11\n• Documento de identidad",
		"◾ *Certificación:*",
		"requisitos 233104",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("sheet missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "El Tambo") {
		t.Error("sheet for ordinal 1 leaked another offer's location")
	}
}

func TestDisambiguationMenuListsEveryOffer(t *testing.T) {
	svc := NewResponseService()
	out := svc.DisambiguationMenu(sampleProgram())

	for _, want := range []string{
		"tiene 2 ofertas",
		"Código [233104-1]",
		"🏙️ Popayán",
		"🕒 Diurna",
		"Código [233104-2]",
		"🏙️ El Tambo",
		"🕒 Mixta",
		"233104-1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("menu missing %q:\n%s", want, out)
		}
	}
}

func TestDisambiguationMenuCapsAtPageSize(t *testing.T) {
	svc := NewResponseService()
	p := sampleProgram()
	p.Offers = nil
	for i := 1; i <= 8; i++ {
		p.Offers = append(p.Offers, entities.Offer{Ordinal: i, Municipality: "Popayán"})
	}
	out := svc.DisambiguationMenu(p)

	if !strings.Contains(out, "Código [233104-5]") {
		t.Errorf("menu should show the page-cap offers:\n%s", out)
	}
	if strings.Contains(out, "Código [233104-6]") {
		t.Errorf("menu should stop at the page cap:\n%s", out)
	}
	if !strings.Contains(out, "*más*") {
		t.Errorf("menu with hidden offers should point at see-more:\n%s", out)
	}
}

func TestDetailSheetMissingFieldsDashed(t *testing.T) {
	svc := NewResponseService()
	p := &entities.Program{Code: "998877", Name: "Auxiliar en Archivo", Level: entities.LevelAuxiliar}
	out := svc.DetailSheet(p, 0)

	if !strings.Contains(out, "◾ *Duración:*\n—") {
		t.Errorf("missing duration should render as dash:\n%s", out)
	}
}

func TestDetailSheetCappedAtLimit(t *testing.T) {
	svc := NewResponseService()
	p := sampleProgram()
	p.GraduateProfile = strings.Repeat("perfil muy largo ", 400)
	out := svc.DetailSheet(p, 1)

	if n := utf8.RuneCountInString(out); n > maxMessageLen {
		t.Errorf("sheet length %d exceeds %d", n, maxMessageLen)
	}
	if !strings.Contains(out, "…") {
		t.Error("truncated section should end with ellipsis")
	}
}

func TestDetailSheetFoldsLongCompetencyList(t *testing.T) {
	svc := NewResponseService()
	p := sampleProgram()
	p.Competencies = []string{
		"Programar aplicaciones", "Modelar datos", "Probar software",
		"Desplegar servicios", "Documentar sistemas", "Atender usuarios",
		"Administrar redes", "Gestionar proyectos",
	}
	out := svc.DetailSheet(p, 1)

	if !strings.Contains(out, "• Atender usuarios") {
		t.Errorf("sixth competency should still be listed:\n%s", out)
	}
	if strings.Contains(out, "• Administrar redes") {
		t.Errorf("seventh competency should be folded away:\n%s", out)
	}
	if !strings.Contains(out, "(+2 más)") {
		t.Errorf("folded count missing:\n%s", out)
	}
}

func TestFieldSummaryDedupesAndCaps(t *testing.T) {
	svc := NewResponseService()
	a := sampleProgram()
	b := &entities.Program{Code: "134104", Name: "Técnico en Cocina",
		Level: entities.LevelTecnico, Duration: "12 meses"}
	c := &entities.Program{Code: "998877", Name: "Auxiliar en Archivo",
		Level: entities.LevelAuxiliar, Duration: "24 Meses"}

	out := svc.FieldSummary("duracion", []*entities.Program{a, b, c})
	if !strings.Contains(out, "📋 *Duración*") {
		t.Fatalf("summary header missing:\n%s", out)
	}
	if !strings.Contains(out, "[233104]") || !strings.Contains(out, "[134104]") {
		t.Errorf("summary should quote both distinct programs:\n%s", out)
	}
	// "24 Meses" normalizes to the same snippet as the first program's
	if strings.Contains(out, "[998877]") {
		t.Errorf("repeated snippet should be collapsed:\n%s", out)
	}
	if !strings.Contains(out, "duracion 233104") {
		t.Errorf("summary should point at the per-code form:\n%s", out)
	}
}

func TestFieldAnswer(t *testing.T) {
	svc := NewResponseService()
	p := sampleProgram()

	out := svc.FieldAnswer(p, "requisitos")
	if !strings.Contains(out, "Requisitos:\n• Grado 11") {
		t.Errorf("field answer = %s", out)
	}

	p.Duration = ""
	out = svc.FieldAnswer(p, "duracion")
	if !strings.Contains(out, "(No tengo ese dato en este momento).") {
		t.Errorf("empty field answer = %s", out)
	}
}

func TestListingNumbersAndAddresses(t *testing.T) {
	svc := NewResponseService()
	p := sampleProgram()
	page := ListingPage{
		Results: []ScoredResult{
			{Ref: entities.OfferRef{Code: "233104", Ordinal: 1}, Program: p},
			{Ref: entities.OfferRef{Code: "233104", Ordinal: 2}, Program: p},
		},
		Page:  1,
		Pages: 1,
		Total: 2,
	}
	intent := &entities.QueryIntent{Level: entities.LevelTecnologo, Municipalities: []string{"popayan"}}
	out := svc.Listing(page, intent)

	for _, want := range []string{
		"📌 Programas Tecnólogo en popayan:",
		"1. Tecnólogo en Análisis y Desarrollo de Software",
		"Código [233104-1]",
		"2. Tecnólogo",
		"Código [233104-2]",
		"¿Te interesa alguno en particular?",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Página") {
		t.Error("single-page listing should not show page footer")
	}
}

func TestListingPagination(t *testing.T) {
	svc := NewResponseService()
	p := sampleProgram()
	page := ListingPage{
		Results: []ScoredResult{{Ref: entities.OfferRef{Code: "233104", Ordinal: 1}, Program: p}},
		Page:    1,
		Pages:   3,
		Total:   11,
	}
	out := svc.Listing(page, nil)

	if !strings.Contains(out, "Página 1 de 3 (11 resultados).") {
		t.Errorf("listing missing page footer:\n%s", out)
	}
	if !strings.Contains(out, "Escribe *más* o *ver todos*") {
		t.Errorf("listing missing see-more hint:\n%s", out)
	}

	page.Page = 3
	page.AtEnd = true
	out = svc.Listing(page, nil)
	if !strings.Contains(out, "No hay más resultados.") {
		t.Errorf("final page missing end note:\n%s", out)
	}
}

func TestListingHeaderPriority(t *testing.T) {
	cases := []struct {
		intent *entities.QueryIntent
		want   string
	}{
		{&entities.QueryIntent{Level: entities.LevelTecnico, Municipalities: []string{"guapi"}}, "Programas Técnico en guapi"},
		{&entities.QueryIntent{Municipalities: []string{"guapi"}}, "Programas en guapi"},
		{&entities.QueryIntent{Level: entities.LevelTecnico, TopicTokens: []string{"cocina"}}, "Programas Técnico sobre cocina"},
		{&entities.QueryIntent{TopicTokens: []string{"cocina"}}, "Programas sobre cocina"},
		{&entities.QueryIntent{TailText: "cocina tradicional"}, "Programas sobre cocina tradicional"},
		{&entities.QueryIntent{Level: entities.LevelTecnico}, "Programas Técnico"},
		{nil, "Programas encontrados"},
	}
	for _, c := range cases {
		if got := listingHeader(c.intent); got != c.want {
			t.Errorf("listingHeader(%+v) = %q, want %q", c.intent, got, c.want)
		}
	}
}

func TestNoResultsQuotesQuery(t *testing.T) {
	svc := NewResponseService()
	p := sampleProgram()
	out := svc.NoResults("astronomia en guapi", []*entities.Program{p})

	if !strings.Contains(out, "astronomia en guapi") {
		t.Errorf("no-results missing query:\n%s", out)
	}
	if !strings.Contains(out, p.Name) {
		t.Errorf("no-results missing example:\n%s", out)
	}
}

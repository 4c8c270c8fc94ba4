package services

import (
	"fmt"
	"strings"

	"github.com/ofertascauca/senabot/internal/domain/entities"
	"github.com/ofertascauca/senabot/pkg/textutil"
)

const (
	// maxMessageLen is the hard WhatsApp text limit.
	maxMessageLen = 4096
	// sectionLimit caps any single sheet section so the whole sheet fits.
	sectionLimit = 1500
	// defaultPageSize is how many offers one listing page shows.
	defaultPageSize = 5
	// maxCompetencyBullets is how many competencies a sheet lists before
	// collapsing the rest into a "+N más" line.
	maxCompetencyBullets = 6
	// maxFieldExamples is how many programs a cross-program field summary quotes.
	maxFieldExamples = 3
	// fieldSnippetLimit caps each quoted example inside a field summary.
	fieldSnippetLimit = 400
)

// ResponseService renders every outbound message. All output is assembled
// from already-sorted inputs, so rendering the same state twice produces
// byte-identical text.
type ResponseService struct {
	pageSize int
}

func NewResponseService() *ResponseService {
	return &ResponseService{pageSize: defaultPageSize}
}

// PageSize returns how many results each listing page carries.
func (s *ResponseService) PageSize() int {
	return s.pageSize
}

// Greeting is the first-contact guide message.
func (s *ResponseService) Greeting() string {
	return "👋 ¡Hola! Soy tu asistente SENA.\n\n" +
		"🔎 ¿Qué deseas buscar?\n" +
		"• Puedo brindarte información sobre técnicos, tecnólogos, operarios y auxiliares.\n" +
		"• Detalles por código de programa: 'requisitos [código]', 'duración [código]'.\n" +
		"• Si deseas la información completa de un programa escribe su código.\n\n" +
		"💡 Tip: si ves muchos resultados escribe *más* o *ver todos*.\n\n" +
		"• Para saber más sobre cómo preguntar escribe 'ayuda'"
}

// Help explains the query forms the bot understands.
func (s *ResponseService) Help() string {
	return "Puedo buscar por nombre, nivel, municipio o sede y darte detalles por *código*.\n" +
		"Ejemplos:\n" +
		"• 'tecnologo en sistemas'\n" +
		"• 'programas en popayan'\n" +
		"• 'requisitos 134104', 'duracion 134104'\n" +
		"• '134104-2' para la segunda oferta de un programa\n"
}

// EmptyPrompt answers a blank or unreadable message.
func (s *ResponseService) EmptyPrompt() string {
	return "No entendí el mensaje. ¿Podrías repetirlo? 😊"
}

// CatalogUnavailable is the degraded-mode answer when no catalog loaded.
func (s *ResponseService) CatalogUnavailable() string {
	return "⚠️ Base de datos no disponible en este momento."
}

// NoResults is the honest empty answer, with a few real programs as examples.
func (s *ResponseService) NoResults(query string, examples []*entities.Program) string {
	var b strings.Builder
	fmt.Fprintf(&b, "❌ No encontré coincidencias para “%s”.\n\n", query)
	b.WriteString("Prueba así:\n")
	b.WriteString("• nombre del programa  ·  nivel (técnico/tecnólogo/auxiliar/operario)\n")
	b.WriteString("• municipio o sede\n")
	b.WriteString("• requisitos 134104  ·  duracion 134104\n")
	if len(examples) > 0 {
		b.WriteString("\nAlgunos ejemplos:\n")
		for i, p := range examples {
			if i >= 3 {
				break
			}
			fmt.Fprintf(&b, "• %s (%s)\n", p.Name, p.Level.Display())
		}
	}
	return capMessage(b.String())
}

// UnknownCode answers a code that is not in the catalog.
func (s *ResponseService) UnknownCode(code string) string {
	return fmt.Sprintf("❌ No encontré un programa con código %s. Verifica el código e inténtalo de nuevo.", code)
}

// UnknownOrdinal answers a code-ordinal whose ordinal does not exist.
func (s *ResponseService) UnknownOrdinal(p *entities.Program, ordinal int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "❌ El programa %s [%s] no tiene una oferta #%d.\n", p.Name, p.Code, ordinal)
	if len(p.Offers) > 0 {
		b.WriteString("Ofertas disponibles:\n")
		for _, o := range p.Offers {
			fmt.Fprintf(&b, "• %s-%d", p.Code, o.Ordinal)
			if o.Municipality != "" {
				fmt.Fprintf(&b, "  🏙️ %s", o.Municipality)
			}
			b.WriteString("\n")
		}
	}
	return capMessage(b.String())
}

// DisambiguationMenu lists a multi-offer program's offers, one line per
// offer up to the page cap, each addressable as code-ordinal.
func (s *ResponseService) DisambiguationMenu(p *entities.Program) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📘 *%s*\n", p.Name)
	fmt.Fprintf(&b, "   %s  ·  Código [%s]\n\n", levelLabel(p), p.Code)
	fmt.Fprintf(&b, "Este programa tiene %d ofertas:\n\n", len(p.Offers))

	shown := len(p.Offers)
	if shown > s.pageSize {
		shown = s.pageSize
	}
	for _, o := range p.Offers[:shown] {
		fmt.Fprintf(&b, "%d. Código [%s-%d]\n", o.Ordinal, p.Code, o.Ordinal)
		if o.Municipality != "" {
			fmt.Fprintf(&b, "   🏙️ %s\n", o.Municipality)
		}
		if o.Venue != "" {
			fmt.Fprintf(&b, "   🏫 %s\n", o.Venue)
		}
		if o.Schedule != "" {
			fmt.Fprintf(&b, "   🕒 %s\n", o.Schedule)
		}
	}

	fmt.Fprintf(&b, "\nℹ️ Pide una oferta con su código, p. ej. *%s-%d*.", p.Code, p.Offers[0].Ordinal)
	if len(p.Offers) > shown {
		b.WriteString("\n💡 Escribe *más* para ver las demás ofertas.")
	}
	return capMessage(b.String())
}

// DetailSheet renders the full program sheet. When ordinal addresses a real
// offer its location and schedule head the sheet; ordinal zero renders the
// program without offer context.
func (s *ResponseService) DetailSheet(p *entities.Program, ordinal int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📘 *%s*\n", p.Name)
	fmt.Fprintf(&b, "   %s  ·  Código [%s]\n", levelLabel(p), p.Code)

	if offer, ok := p.OfferByOrdinal(ordinal); ok {
		if offer.Municipality != "" {
			fmt.Fprintf(&b, "🏙️ %s\n", offer.Municipality)
		}
		if offer.Venue != "" {
			fmt.Fprintf(&b, "🏫 %s\n", offer.Venue)
		}
		if offer.Schedule != "" {
			fmt.Fprintf(&b, "🕒 %s\n", offer.Schedule)
		}
	} else if len(p.Offers) == 1 {
		o := p.Offers[0]
		if o.Municipality != "" {
			fmt.Fprintf(&b, "🏙️ %s\n", o.Municipality)
		}
		if o.Venue != "" {
			fmt.Fprintf(&b, "🏫 %s\n", o.Venue)
		}
		if o.Schedule != "" {
			fmt.Fprintf(&b, "🕒 %s\n", o.Schedule)
		}
	}
	b.WriteString("\n")

	sections := []struct {
		title string
		body  string
	}{
		{"Duración", orDash(p.Duration)},
		{"Requisitos", bullets(p.Requirements)},
		{"Perfil del egresado", orDash(p.GraduateProfile)},
		{"Competencias", cappedBullets(p.Competencies, maxCompetencyBullets)},
		{"Certificación", orDash(p.Certification)},
	}
	for _, sec := range sections {
		fmt.Fprintf(&b, "◾ *%s:*\n%s\n\n", sec.title, truncateSection(sec.body))
	}

	fmt.Fprintf(&b, "ℹ️ Pide un campo puntual con:  requisitos %[1]s · duracion %[1]s · perfil %[1]s · competencias %[1]s · certificacion %[1]s", p.Code)
	return capMessage(b.String())
}

// FieldAnswer renders one field of one program.
func (s *ResponseService) FieldAnswer(p *entities.Program, field string) string {
	body := fieldBody(p, field)
	header := fmt.Sprintf("*%s* — %s  ·  código %s", p.Name, levelLabel(p), p.Code)
	label := fieldLabel(field)
	if strings.TrimSpace(body) == "" {
		return fmt.Sprintf("%s\n\n%s:\n(No tengo ese dato en este momento).", header, label)
	}

	out := header + "\n"
	if meta := offerMeta(p); meta != "" {
		out += meta + "\n"
	}
	out += fmt.Sprintf("\n%s:\n%s", label, truncateSection(body))
	return capMessage(out)
}

// FieldSummary answers a field question that matched several programs. It
// quotes the field from each program, skips repeated snippets, and stops
// after a few examples so the reply stays readable.
func (s *ResponseService) FieldSummary(field string, programs []*entities.Program) string {
	label := fieldLabel(field)
	seen := make(map[string]struct{})

	var examples []string
	var firstCode string
	for _, p := range programs {
		body := fieldBody(p, field)
		if strings.TrimSpace(body) == "" {
			continue
		}
		key := textutil.Normalize(body)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		examples = append(examples, fmt.Sprintf("▪ *%s* [%s]:\n%s",
			p.Name, p.Code, truncateRunes(body, fieldSnippetLimit)))
		if firstCode == "" {
			firstCode = p.Code
		}
		if len(examples) >= maxFieldExamples {
			break
		}
	}
	if len(examples) == 0 {
		return fmt.Sprintf("%s:\n(No tengo ese dato en este momento).", label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 *%s* de los programas encontrados:\n\n", label)
	b.WriteString(strings.Join(examples, "\n\n"))
	fmt.Fprintf(&b, "\n\nℹ️ Pide el dato de un programa puntual con su código, p. ej. *%s %s*.",
		field, firstCode)
	return capMessage(b.String())
}

func fieldBody(p *entities.Program, field string) string {
	switch field {
	case "duracion":
		return p.Duration
	case "requisitos":
		return bulletsEmpty(p.Requirements)
	case "perfil":
		return p.GraduateProfile
	case "competencias":
		return bulletsEmpty(p.Competencies)
	case "certificacion":
		return p.Certification
	}
	return ""
}

// ListingPage is the slice of ranked results shown on one page.
type ListingPage struct {
	Results []ScoredResult
	Page    int
	Pages   int
	Total   int
	AtEnd   bool
}

// Listing renders one numbered page of results. Each line carries the
// code-ordinal address so users can reply with a number or the address.
func (s *ResponseService) Listing(page ListingPage, intent *entities.QueryIntent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📌 %s:\n\n", listingHeader(intent))

	for i, r := range page.Results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Program.Name)
		if r.Ref.Ordinal > 0 {
			fmt.Fprintf(&b, "   %s  ·  Código [%s-%d]\n", levelLabel(r.Program), r.Ref.Code, r.Ref.Ordinal)
		} else {
			fmt.Fprintf(&b, "   %s  ·  Código [%s]\n", levelLabel(r.Program), r.Ref.Code)
		}
		if offer, ok := r.Program.OfferByOrdinal(r.Ref.Ordinal); ok {
			if offer.Municipality != "" {
				fmt.Fprintf(&b, "   🏙️ %s\n", offer.Municipality)
			}
			if offer.Venue != "" {
				fmt.Fprintf(&b, "   🏫 %s\n", offer.Venue)
			}
			if offer.Schedule != "" {
				fmt.Fprintf(&b, "   🕒 %s\n", offer.Schedule)
			}
		}
		b.WriteString("\n")
	}

	if page.Pages > 1 {
		fmt.Fprintf(&b, "Página %d de %d (%d resultados).\n", page.Page, page.Pages, page.Total)
	}
	b.WriteString("ℹ️ Responde con el *número* de la lista o pide detalle con el código.\n")
	b.WriteString("   Ejemplos: Requisitos 134104  ·  Duración 134104  ·  Perfil 134104\n")

	switch {
	case page.AtEnd && page.Pages > 1:
		b.WriteString("\nNo hay más resultados.")
	case page.Page < page.Pages:
		b.WriteString("\n💡 Escribe *más* o *ver todos* para ver más resultados.")
	default:
		b.WriteString("\n¿Te interesa alguno en particular?")
	}

	return capMessage(b.String())
}

// ConsentRequest asks for data-processing consent before the first query.
func (s *ResponseService) ConsentRequest() string {
	return "🔐 Antes de empezar necesito tu autorización para tratar tus datos " +
		"según la política del SENA.\n\n" +
		"Responde *acepto* para continuar o *no acepto* para salir."
}

// ConsentDeclined acknowledges a rejection.
func (s *ResponseService) ConsentDeclined() string {
	return "Entendido, no guardaré tus datos. Si cambias de opinión escribe *acepto*."
}

// ConsentAccepted confirms consent and hands over to the greeting.
func (s *ResponseService) ConsentAccepted() string {
	return "✅ ¡Gracias! Ya podemos empezar.\n\n" + s.Greeting()
}

func listingHeader(intent *entities.QueryIntent) string {
	if intent == nil {
		return "Programas encontrados"
	}
	hasLevel := intent.Level != ""
	hasLoc := intent.HasLocation()
	hasTopic := len(intent.TopicTokens) > 0 || intent.TailText != ""

	switch {
	case hasLevel && hasLoc:
		return fmt.Sprintf("Programas %s en %s", intent.Level.Display(), joinKeys(intent.LocationKeys()))
	case hasLoc:
		return fmt.Sprintf("Programas en %s", joinKeys(intent.LocationKeys()))
	case hasLevel && hasTopic:
		return fmt.Sprintf("Programas %s sobre %s", intent.Level.Display(), topicPhrase(intent))
	case hasTopic:
		return fmt.Sprintf("Programas sobre %s", topicPhrase(intent))
	case hasLevel:
		return fmt.Sprintf("Programas %s", intent.Level.Display())
	}
	return "Programas encontrados"
}

func topicPhrase(intent *entities.QueryIntent) string {
	if intent.TailText != "" {
		return intent.TailText
	}
	return strings.Join(intent.TopicTokens, " ")
}

func joinKeys(keys []string) string {
	return strings.Join(keys, ", ")
}

func levelLabel(p *entities.Program) string {
	if p.Level != "" {
		return p.Level.Display()
	}
	if p.LevelRaw != "" {
		return p.LevelRaw
	}
	return "N/A"
}

func fieldLabel(field string) string {
	switch field {
	case "duracion":
		return "Duración"
	case "requisitos":
		return "Requisitos"
	case "perfil":
		return "Perfil del egresado"
	case "competencias":
		return "Competencias"
	case "certificacion":
		return "Certificación"
	}
	return field
}

func offerMeta(p *entities.Program) string {
	if len(p.Offers) != 1 {
		return ""
	}
	o := p.Offers[0]
	var parts []string
	if o.Municipality != "" {
		parts = append(parts, "🏙️ "+o.Municipality)
	}
	if o.Venue != "" {
		parts = append(parts, "🏫 "+o.Venue)
	}
	if o.Schedule != "" {
		parts = append(parts, "🕒 "+o.Schedule)
	}
	return strings.Join(parts, "  ·  ")
}

// cappedBullets renders at most max bullet lines and folds the overflow
// into a final "(+N más)" line.
func cappedBullets(values []string, max int) string {
	var vals []string
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			vals = append(vals, t)
		}
	}
	if len(vals) == 0 {
		return "—"
	}
	if len(vals) <= max {
		return "• " + strings.Join(vals, "\n• ")
	}
	rest := len(vals) - max
	return "• " + strings.Join(vals[:max], "\n• ") + fmt.Sprintf("\n(+%d más)", rest)
}

func bullets(values []string) string {
	out := bulletsEmpty(values)
	if out == "" {
		return "—"
	}
	return out
}

func bulletsEmpty(values []string) string {
	var vals []string
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			vals = append(vals, t)
		}
	}
	if len(vals) == 0 {
		return ""
	}
	return "• " + strings.Join(vals, "\n• ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return strings.TrimSpace(s)
}

func truncateSection(s string) string {
	return truncateRunes(s, sectionLimit)
}

func capMessage(s string) string {
	return truncateRunes(s, maxMessageLen)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimRight(string(runes[:limit-1]), " \n") + "…"
}

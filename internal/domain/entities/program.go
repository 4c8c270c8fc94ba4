package entities

import "strings"

// Level is the closed enumeration of training levels.
type Level string

const (
	LevelTecnico   Level = "tecnico"
	LevelTecnologo Level = "tecnologo"
	LevelAuxiliar  Level = "auxiliar"
	LevelOperario  Level = "operario"
)

// ValidLevels returns all valid level values.
func ValidLevels() []Level {
	return []Level{LevelTecnico, LevelTecnologo, LevelAuxiliar, LevelOperario}
}

// ParseLevel maps a normalized keyword (singular or plural) to its level.
func ParseLevel(word string) (Level, bool) {
	switch word {
	case "tecnico", "tecnicos":
		return LevelTecnico, true
	case "tecnologo", "tecnologos":
		return LevelTecnologo, true
	case "auxiliar", "auxiliares":
		return LevelAuxiliar, true
	case "operario", "operarios":
		return LevelOperario, true
	}
	return "", false
}

// Display returns the human-readable Spanish label for the level.
func (l Level) Display() string {
	switch l {
	case LevelTecnico:
		return "Técnico"
	case LevelTecnologo:
		return "Tecnólogo"
	case LevelAuxiliar:
		return "Auxiliar"
	case LevelOperario:
		return "Operario"
	}
	return string(l)
}

// Offer is one concrete delivery of a Program at a location/schedule.
// Ordinals are 1-based and stable within the owning program.
type Offer struct {
	Ordinal          int
	Municipality     string
	MunicipalityNorm string
	MunicipalityBase string
	Venue            string
	VenueNorm        string
	Schedule         string
}

// Program is a canonical training offering, immutable after catalog load.
type Program struct {
	Code            string
	Name            string
	NameNorm        string
	Level           Level
	LevelRaw        string
	Duration        string
	Requirements    []string
	GraduateProfile string
	Competencies    []string
	Certification   string
	Keywords        []string
	Offers          []Offer

	// SearchBag is the normalized name+keyword text used for topic scoring.
	SearchBag string
}

// OfferByOrdinal returns the offer with the given 1-based ordinal.
func (p *Program) OfferByOrdinal(ordinal int) (*Offer, bool) {
	for i := range p.Offers {
		if p.Offers[i].Ordinal == ordinal {
			return &p.Offers[i], true
		}
	}
	return nil, false
}

// BagContains reports whether the token appears in the program's search bag.
func (p *Program) BagContains(token string) bool {
	if token == "" {
		return false
	}
	return strings.Contains(" "+p.SearchBag+" ", token)
}

// OfferRef addresses one offer as a (code, ordinal) pair.
type OfferRef struct {
	Code    string `json:"code"`
	Ordinal int    `json:"ordinal"`
}

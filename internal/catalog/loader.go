package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/ofertascauca/senabot/internal/domain/entities"
	"github.com/ofertascauca/senabot/pkg/textutil"
)

// Catalog is the immutable set of programs loaded at startup.
type Catalog struct {
	programs []*entities.Program
	byCode   map[string]*entities.Program
	source   string
}

// flexString tolerates catalog fields that arrive as JSON numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// nestedOffer is one delivery inside the preferred nested schema.
type nestedOffer struct {
	Orden         int        `json:"orden"`
	Municipio     flexString `json:"municipio"`
	MunicipioNorm flexString `json:"municipio_norm"`
	Sede          flexString `json:"sede"`
	Horario       flexString `json:"horario"`
}

// nestedProgram is one record of the preferred nested schema.
type nestedProgram struct {
	Codigo         flexString    `json:"codigo"`
	Programa       flexString    `json:"programa"`
	Nivel          flexString    `json:"nivel"`
	Duracion       flexString    `json:"duracion"`
	Requisitos     []string      `json:"requisitos"`
	PerfilEgresado flexString    `json:"perfil_egresado"`
	Competencias   []string      `json:"competencias"`
	Certificacion  flexString    `json:"certificacion"`
	PalabrasClave  []string      `json:"palabras_clave"`
	Ofertas        []nestedOffer `json:"ofertas"`
}

// flatRecord is one record of the legacy flat schema: one row per offer with
// location fields directly on the record.
type flatRecord struct {
	No             flexString `json:"no"`
	Codigo         flexString `json:"codigo"`
	CodigoFicha    flexString `json:"codigo_ficha"`
	Programa       flexString `json:"programa"`
	Nivel          flexString `json:"nivel"`
	Municipio      flexString `json:"municipio"`
	Sede           flexString `json:"sede"`
	Horario        flexString `json:"horario"`
	Duracion       flexString `json:"duracion"`
	Requisitos     []string   `json:"requisitos"`
	PerfilEgresado flexString `json:"perfil_egresado"`
	Competencias   []string   `json:"competencias"`
	Certificacion  flexString `json:"certificacion"`
	PalabrasClave  []string   `json:"palabras_clave"`
}

func (r *flatRecord) code() string {
	for _, c := range []flexString{r.Codigo, r.CodigoFicha, r.No} {
		if c != "" {
			return string(c)
		}
	}
	return ""
}

// Load probes the candidate paths in order and loads the first file that
// exists and parses; its schema is fixed for the process lifetime. When no
// candidate is usable the returned catalog is empty and every later lookup
// reports not found instead of erroring.
func Load(paths []string) *Catalog {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Error().Err(err).Str("path", path).Msg("catalog file unreadable, trying next candidate")
			}
			continue
		}

		c, err := decode(data)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("catalog file malformed, trying next candidate")
			continue
		}
		c.source = path
		log.Info().Str("path", path).Int("programs", c.Len()).Msg("catalog loaded")
		return c
	}

	log.Warn().Strs("paths", paths).Msg("no catalog file found, serving with empty catalog")
	return NewCatalog(nil)
}

// decode selects the loader strategy: records carrying an "ofertas" list use
// the nested schema, otherwise the legacy flat layout applies.
func decode(data []byte) (*Catalog, error) {
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("catalog is not a JSON list: %w", err)
	}

	nested := false
	for _, rec := range probe {
		if _, ok := rec["ofertas"]; ok {
			nested = true
			break
		}
	}

	if nested {
		return decodeNested(data)
	}
	return decodeFlat(data)
}

func decodeNested(data []byte) (*Catalog, error) {
	var records []nestedProgram
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("nested catalog schema: %w", err)
	}

	programs := make([]*entities.Program, 0, len(records))
	for _, rec := range records {
		if rec.Codigo == "" {
			continue
		}
		p := &entities.Program{
			Code:            string(rec.Codigo),
			Name:            string(rec.Programa),
			Level:           parseRawLevel(string(rec.Nivel)),
			LevelRaw:        string(rec.Nivel),
			Duration:        string(rec.Duracion),
			Requirements:    rec.Requisitos,
			GraduateProfile: string(rec.PerfilEgresado),
			Competencies:    rec.Competencias,
			Certification:   string(rec.Certificacion),
			Keywords:        rec.PalabrasClave,
		}
		for i, o := range rec.Ofertas {
			ordinal := o.Orden
			if ordinal <= 0 {
				ordinal = i + 1
			}
			muniNorm := string(o.MunicipioNorm)
			if muniNorm == "" {
				muniNorm = textutil.Normalize(string(o.Municipio))
			}
			p.Offers = append(p.Offers, entities.Offer{
				Ordinal:          ordinal,
				Municipality:     string(o.Municipio),
				MunicipalityNorm: muniNorm,
				MunicipalityBase: BaseMunicipality(muniNorm),
				Venue:            string(o.Sede),
				VenueNorm:        textutil.Normalize(string(o.Sede)),
				Schedule:         string(o.Horario),
			})
		}
		programs = append(programs, p)
	}
	return NewCatalog(programs), nil
}

func decodeFlat(data []byte) (*Catalog, error) {
	var records []flatRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("flat catalog schema: %w", err)
	}

	var order []string
	grouped := make(map[string]*entities.Program)
	for _, rec := range records {
		code := rec.code()
		if code == "" {
			continue
		}
		p, ok := grouped[code]
		if !ok {
			p = &entities.Program{
				Code:            code,
				Name:            string(rec.Programa),
				Level:           parseRawLevel(string(rec.Nivel)),
				LevelRaw:        string(rec.Nivel),
				Duration:        string(rec.Duracion),
				Requirements:    rec.Requisitos,
				GraduateProfile: string(rec.PerfilEgresado),
				Competencies:    rec.Competencias,
				Certification:   string(rec.Certificacion),
				Keywords:        rec.PalabrasClave,
			}
			grouped[code] = p
			order = append(order, code)
		}
		if rec.Municipio == "" && rec.Sede == "" {
			continue
		}
		muniNorm := textutil.Normalize(string(rec.Municipio))
		p.Offers = append(p.Offers, entities.Offer{
			Ordinal:          len(p.Offers) + 1,
			Municipality:     string(rec.Municipio),
			MunicipalityNorm: muniNorm,
			MunicipalityBase: BaseMunicipality(muniNorm),
			Venue:            string(rec.Sede),
			VenueNorm:        textutil.Normalize(string(rec.Sede)),
			Schedule:         string(rec.Horario),
		})
	}

	programs := make([]*entities.Program, 0, len(order))
	for _, code := range order {
		programs = append(programs, grouped[code])
	}
	return NewCatalog(programs), nil
}

// NewCatalog builds a catalog from already-assembled programs, filling in
// derived normalized fields that the caller left empty.
func NewCatalog(programs []*entities.Program) *Catalog {
	c := &Catalog{
		programs: programs,
		byCode:   make(map[string]*entities.Program, len(programs)),
	}
	for _, p := range programs {
		if p.NameNorm == "" {
			p.NameNorm = textutil.Normalize(p.Name)
		}
		if p.SearchBag == "" {
			parts := []string{p.NameNorm}
			for _, kw := range p.Keywords {
				parts = append(parts, textutil.Normalize(kw))
			}
			p.SearchBag = strings.Join(parts, " ")
		}
		for i := range p.Offers {
			o := &p.Offers[i]
			if o.Ordinal <= 0 {
				o.Ordinal = i + 1
			}
			if o.MunicipalityNorm == "" {
				o.MunicipalityNorm = textutil.Normalize(o.Municipality)
			}
			if o.MunicipalityBase == "" {
				o.MunicipalityBase = BaseMunicipality(o.MunicipalityNorm)
			}
			if o.VenueNorm == "" {
				o.VenueNorm = textutil.Normalize(o.Venue)
			}
		}
		c.byCode[p.Code] = p
	}
	return c
}

// ByCode returns the program with the given code.
func (c *Catalog) ByCode(code string) (*entities.Program, bool) {
	p, ok := c.byCode[code]
	return p, ok
}

// Programs returns all programs in load order.
func (c *Catalog) Programs() []*entities.Program {
	return c.programs
}

// Len returns the number of programs.
func (c *Catalog) Len() int {
	return len(c.programs)
}

// Source returns the path the catalog was loaded from, empty when degraded.
func (c *Catalog) Source() string {
	return c.source
}

var trailingQualifier = regexp.MustCompile(`\s*[-–—(].*$`)

// BaseMunicipality strips a trailing qualifier ("popayan - zona rural",
// "guapi (corregimiento)") from a normalized municipality string.
func BaseMunicipality(norm string) string {
	return strings.TrimSpace(trailingQualifier.ReplaceAllString(norm, ""))
}

func parseRawLevel(raw string) entities.Level {
	for _, tok := range textutil.Tokenize(raw) {
		if lvl, ok := entities.ParseLevel(tok); ok {
			return lvl
		}
	}
	return ""
}

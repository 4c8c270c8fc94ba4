package catalog

import (
	"path/filepath"
	"testing"

	"github.com/ofertascauca/senabot/internal/domain/entities"
)

func TestLoad_NestedSchema(t *testing.T) {
	c := Load([]string{filepath.Join("testdata", "programas_catalogo.json")})

	if c.Len() != 3 {
		t.Fatalf("expected 3 programs, got %d", c.Len())
	}

	p, ok := c.ByCode("233104")
	if !ok {
		t.Fatal("expected program 233104")
	}
	if p.Level != entities.LevelTecnologo {
		t.Errorf("expected tecnologo level, got %q", p.Level)
	}
	if len(p.Offers) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(p.Offers))
	}
	if p.Offers[0].Ordinal != 1 || p.Offers[1].Ordinal != 2 {
		t.Errorf("unexpected ordinals: %d, %d", p.Offers[0].Ordinal, p.Offers[1].Ordinal)
	}
	if p.Offers[0].MunicipalityNorm != "popayan" {
		t.Errorf("expected normalized municipality, got %q", p.Offers[0].MunicipalityNorm)
	}
}

func TestLoad_NestedSchema_BaseMunicipalityStripsQualifier(t *testing.T) {
	c := Load([]string{filepath.Join("testdata", "programas_catalogo.json")})

	p, _ := c.ByCode("233104")
	rural := p.Offers[1]
	if rural.MunicipalityBase != "popayan" {
		t.Errorf("expected base 'popayan', got %q", rural.MunicipalityBase)
	}
	if rural.MunicipalityNorm == rural.MunicipalityBase {
		t.Error("expected full form to keep its qualifier")
	}
}

func TestLoad_NestedSchema_MissingOrdinalAssignedByPosition(t *testing.T) {
	c := Load([]string{filepath.Join("testdata", "programas_catalogo.json")})

	p, _ := c.ByCode("134104")
	if len(p.Offers) != 1 || p.Offers[0].Ordinal != 1 {
		t.Fatalf("expected single offer with ordinal 1, got %+v", p.Offers)
	}
}

func TestLoad_FlatSchema_GroupsByCode(t *testing.T) {
	c := Load([]string{filepath.Join("testdata", "programas.json")})

	if c.Len() != 2 {
		t.Fatalf("expected 2 programs after grouping, got %d", c.Len())
	}
	p, ok := c.ByCode("233104")
	if !ok {
		t.Fatal("expected numeric 'no' field to become the code")
	}
	if len(p.Offers) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(p.Offers))
	}
	if p.Offers[0].MunicipalityNorm != "popayan" || p.Offers[1].MunicipalityNorm != "el tambo" {
		t.Errorf("unexpected offer order: %+v", p.Offers)
	}
	if p.Offers[1].Ordinal != 2 {
		t.Errorf("expected ordinal by file position, got %d", p.Offers[1].Ordinal)
	}
}

func TestLoad_FirstExistingFileWins(t *testing.T) {
	c := Load([]string{
		filepath.Join("testdata", "does_not_exist.json"),
		filepath.Join("testdata", "programas_catalogo.json"),
		filepath.Join("testdata", "programas.json"),
	})
	if c.Source() != filepath.Join("testdata", "programas_catalogo.json") {
		t.Errorf("unexpected source: %q", c.Source())
	}
}

func TestLoad_NoCatalogFile_EmptyCatalog(t *testing.T) {
	c := Load([]string{filepath.Join("testdata", "missing.json")})
	if c.Len() != 0 {
		t.Fatalf("expected empty catalog, got %d programs", c.Len())
	}
	if _, ok := c.ByCode("233104"); ok {
		t.Error("expected no lookups to succeed on an empty catalog")
	}
}

func TestBaseMunicipality(t *testing.T) {
	cases := map[string]string{
		"popayan":               "popayan",
		"popayan - zona rural":  "popayan",
		"guapi (corregimiento)": "guapi",
	}
	for in, want := range cases {
		if got := BaseMunicipality(in); got != want {
			t.Errorf("BaseMunicipality(%q) = %q, want %q", in, got, want)
		}
	}
}

package textutil

import (
	"reflect"
	"testing"
)

func TestNormalize_DiacriticFolding(t *testing.T) {
	if Normalize("Técnico") != Normalize("tecnico") {
		t.Errorf("expected diacritic-insensitive equality, got %q vs %q", Normalize("Técnico"), Normalize("tecnico"))
	}
	if got := Normalize("Popayán"); got != "popayan" {
		t.Errorf("expected 'popayan', got %q", got)
	}
}

func TestNormalize_WhitespaceAndCase(t *testing.T) {
	if got := Normalize("  Tecnólogo   EN  Sistemas "); got != "tecnologo en sistemas" {
		t.Errorf("got %q", got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"Técnico  en Sistemas", "MECÁNICA", "ñandú", "  ", "233104-2"}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("Técnico  en Sistemas")
	want := []string{"tecnico", "en", "sistemas"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTokenize_DropsPunctuation(t *testing.T) {
	got := Tokenize("¿requisitos, 134104?")
	want := []string{"requisitos", "134104"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNGrams_ShortTokenContributesWholeToken(t *testing.T) {
	grams := NGrams("en")
	if _, ok := grams["en"]; !ok {
		t.Errorf("expected whole short token, got %v", grams)
	}
	if len(grams) != 1 {
		t.Errorf("expected single gram, got %v", grams)
	}
}

func TestNGrams_SlidingWindows(t *testing.T) {
	grams := NGrams("sede", 3)
	for _, want := range []string{"sed", "ede"} {
		if _, ok := grams[want]; !ok {
			t.Errorf("missing gram %q in %v", want, grams)
		}
	}
	if _, ok := grams["sede"]; ok {
		t.Errorf("did not expect full token for equal-length window twice, got %v", grams)
	}
}

package config

import (
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Cursor.Backend != "memory" {
		t.Errorf("expected default cursor backend 'memory', got %q", cfg.Cursor.Backend)
	}
	if len(cfg.Catalog.Paths) == 0 {
		t.Fatal("expected default catalog paths")
	}
	if cfg.Catalog.Paths[0] != "data/programas_catalogo.json" {
		t.Errorf("expected nested-schema path first, got %q", cfg.Catalog.Paths[0])
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CATALOG_PATHS", "a.json, b.json")
	t.Setenv("CURSOR_BACKEND", "redis")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected 9090, got %d", cfg.Server.Port)
	}
	if len(cfg.Catalog.Paths) != 2 || cfg.Catalog.Paths[1] != "b.json" {
		t.Errorf("unexpected catalog paths: %v", cfg.Catalog.Paths)
	}
	if cfg.Cursor.Backend != "redis" {
		t.Errorf("expected redis backend, got %q", cfg.Cursor.Backend)
	}
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "senabot", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=senabot sslmode=disable"
	if got := c.DatabaseDSN(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

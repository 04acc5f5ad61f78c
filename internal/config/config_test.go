package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_appliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("embedding provider = %q, want openai default", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("dimensions = %d, want 1536 default", cfg.Embedding.Dimensions)
	}
	if cfg.Retrieval.DefaultTopK != 5 || cfg.Retrieval.MaxTopK != 50 {
		t.Errorf("unexpected retrieval defaults: %+v", cfg.Retrieval)
	}
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("llm model = %q, want gpt-4o-mini default", cfg.LLM.Model)
	}
	if len(cfg.Intake.Extensions) == 0 {
		t.Error("intake extensions should have defaults")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/candidates.db"
  vector_index_path: "./data/indices/vectors.idx"
intake:
  directories: ["./intake"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(cfg.Storage.DatabasePath, dir) {
		t.Errorf("database_path %q not under config dir %q", cfg.Storage.DatabasePath, dir)
	}
	if !strings.HasPrefix(cfg.Storage.VectorIndexPath, dir) {
		t.Errorf("vector_index_path %q not under config dir %q", cfg.Storage.VectorIndexPath, dir)
	}
	if !strings.HasPrefix(cfg.Intake.Directories[0], dir) {
		t.Errorf("intake dir %q not under config dir %q", cfg.Intake.Directories[0], dir)
	}
}

func TestLoad_missingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Intake.Directories = []string{"/srv/intake"}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != cfg.Server.Port {
		t.Errorf("port = %d, want %d", loaded.Server.Port, cfg.Server.Port)
	}
	if len(loaded.Intake.Directories) != 1 || loaded.Intake.Directories[0] != "/srv/intake" {
		t.Errorf("intake directories not preserved: %v", loaded.Intake.Directories)
	}
}

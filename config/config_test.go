package config

import (
	"strings"
	"testing"
)

func TestParseDirectives(t *testing.T) {
	input := `
# comment line, ignored

path /usr/lib/pion/plugins
service /hello hello_service
option /hello greeting=hi
`
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Paths) != 1 || cfg.Paths[0].Dir != "/usr/lib/pion/plugins" {
		t.Errorf("Paths = %v", cfg.Paths)
	}
	if len(cfg.Services) != 1 || cfg.Services[0].Resource != "/hello" || cfg.Services[0].File != "hello_service" {
		t.Errorf("Services = %v", cfg.Services)
	}
	if len(cfg.Options) != 1 || cfg.Options[0].Resource != "/hello" ||
		cfg.Options[0].Name != "greeting" || cfg.Options[0].Value != "hi" {
		t.Errorf("Options = %v", cfg.Options)
	}
}

func TestParseUnknownDirective(t *testing.T) {
	_, err := Parse(strings.NewReader("frobnicate /x\n"))
	if err == nil {
		t.Fatal("expected error for unknown directive")
	}
}

func TestParseArityErrors(t *testing.T) {
	tests := []string{
		"path\n",
		"path /a /b\n",
		"service /only-one-field\n",
		"option /x not-a-kv-pair\n",
	}
	for _, in := range tests {
		if _, err := Parse(strings.NewReader(in)); err == nil {
			t.Errorf("expected error parsing %q", in)
		}
	}
}

func TestParseEmptyInput(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Paths)+len(cfg.Services)+len(cfg.Options) != 0 {
		t.Errorf("expected empty Config, got %+v", cfg)
	}
}

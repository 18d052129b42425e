package configuration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseSectionsAndComments(t *testing.T) {
	c := &Config{settings: make(map[string]map[string]string)}
	text := `
; comment
# another comment
[Interpreter]
max_gosub_depth = 12
dump_ir=true

[Files]
storage = sqlite
key without equals
`
	if err := c.parse(strings.NewReader(text)); err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	tests := []struct {
		section, key, want string
	}{
		{"Interpreter", "max_gosub_depth", "12"},
		{"Interpreter", "dump_ir", "true"},
		{"Files", "storage", "sqlite"},
	}
	for _, tt := range tests {
		if got := c.settings[tt.section][tt.key]; got != tt.want {
			t.Errorf("[%s] %s = %q, want %q", tt.section, tt.key, got, tt.want)
		}
	}
	if _, ok := c.settings["Files"]["key without equals"]; ok {
		t.Error("line without '=' must be ignored")
	}
}

func TestLoadStringTypedGetters(t *testing.T) {
	defer func() { globalConfig = nil }()

	err := LoadString(`
[Interpreter]
max_gosub_depth = 7
random_seed = 9000000000
[Terminal]
input_timeout = 3s
require_token = yes-please
[Graphics]
width = 2.5
`)
	if err != nil {
		t.Fatalf("LoadString: %v", err)
	}

	if got := GetInt("Interpreter", "max_gosub_depth", 0); got != 7 {
		t.Errorf("GetInt = %d, want 7", got)
	}
	if got := GetInt64("Interpreter", "random_seed", 0); got != 9000000000 {
		t.Errorf("GetInt64 = %d", got)
	}
	if got := GetDuration("Terminal", "input_timeout", 0); got != 3*time.Second {
		t.Errorf("GetDuration = %v", got)
	}
	// malformed bool falls back to the default
	if got := GetBool("Terminal", "require_token", true); !got {
		t.Error("GetBool should return default for malformed value")
	}
	if got := GetFloat("Graphics", "width", 0); got != 2.5 {
		t.Errorf("GetFloat = %v", got)
	}
	// defaults are present underneath the parsed text
	if got := GetString("Files", "storage", ""); got != "os" {
		t.Errorf("default Files.storage = %q, want os", got)
	}
	if got := GetString("Nope", "nothing", "fallback"); got != "fallback" {
		t.Errorf("missing key = %q", got)
	}
}

func TestDefaultFileIsGenerated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.cfg")

	c, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	for _, section := range sectionOrder {
		if !strings.Contains(string(data), "["+section+"]") {
			t.Errorf("generated file lacks section %s", section)
		}
	}
	if c.settings["Interpreter"]["duplicate_lines"] != "error" {
		t.Error("defaults not loaded")
	}
}

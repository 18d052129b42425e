package tls

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/antibyte/retrobasic/pkg/configuration"
)

func TestTLSManagerDisabledByDefault(t *testing.T) {
	if err := configuration.LoadString(""); err != nil {
		t.Fatal(err)
	}
	manager, err := NewTLSManager(ConfigFromSettings())
	if err != nil {
		t.Fatalf("Failed to create TLS manager: %v", err)
	}
	if manager.IsEnabled() {
		t.Error("TLS should be disabled by default")
	}
	if manager.GetTLSConfig() != nil {
		t.Error("TLS config should be nil when TLS is disabled")
	}

	fallback := http.NotFoundHandler()
	if h := manager.GetHTTPHandler(fallback); h == nil {
		t.Error("HTTP handler should fall back")
	}
}

func TestTLSConfigValidation(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "server.crt")
	if err := os.WriteFile(cert, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		config  TLSConfig
		wantErr bool
	}{
		{"empty", TLSConfig{}, false},
		{"domain and cert", TLSConfig{Domain: "basic.test", CertFile: cert, KeyFile: cert}, true},
		{"domain with port", TLSConfig{Domain: "basic.test:443"}, true},
		{"cert without key", TLSConfig{CertFile: cert}, true},
		{"missing files", TLSConfig{CertFile: filepath.Join(dir, "nope"), KeyFile: cert}, true},
		{"cert pair", TLSConfig{CertFile: cert, KeyFile: cert}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := tt.config
			err := (&TLSManager{config: &config}).validateConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("validateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAutocertManager(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "certs")
	manager, err := NewTLSManager(&TLSConfig{Domain: " basic.test ", CertCacheDir: cache})
	if err != nil {
		t.Fatalf("Failed to create TLS manager: %v", err)
	}
	if !manager.IsEnabled() || manager.GetTLSConfig() == nil {
		t.Fatal("autocert should enable TLS")
	}
	if _, err := os.Stat(cache); err != nil {
		t.Errorf("cache directory not created: %v", err)
	}

	// Non-challenge requests reach the fallback handler.
	called := false
	h := manager.GetHTTPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "http://basic.test/", nil))
	if !called {
		t.Error("fallback handler was not called")
	}
}

func TestCertPairManager(t *testing.T) {
	dir := t.TempDir()
	cert, key := filepath.Join(dir, "c.pem"), filepath.Join(dir, "k.pem")
	for _, f := range []string{cert, key} {
		if err := os.WriteFile(f, []byte("x"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	manager, err := NewTLSManager(&TLSConfig{CertFile: cert, KeyFile: key})
	if err != nil {
		t.Fatal(err)
	}
	if !manager.IsEnabled() {
		t.Error("cert pair should enable TLS")
	}
	if c, k := manager.GetCertFiles(); c != cert || k != key {
		t.Errorf("GetCertFiles() = %s, %s", c, k)
	}
}

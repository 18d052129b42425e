package tls

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/antibyte/retrobasic/pkg/configuration"
	"github.com/antibyte/retrobasic/pkg/logger"

	"golang.org/x/crypto/acme/autocert"
)

// TLSManager provides the TLS setup of the terminal server: automatic
// certificates for a domain, or a fixed certificate pair.
type TLSManager struct {
	config      *TLSConfig
	autocertMgr *autocert.Manager
	tlsConfig   *tls.Config
}

// TLSConfig holds TLS configuration options
type TLSConfig struct {
	Domain       string
	Email        string
	CertCacheDir string
	CertFile     string
	KeyFile      string
}

// ConfigFromSettings reads the [Terminal] TLS keys.
func ConfigFromSettings() *TLSConfig {
	return &TLSConfig{
		Domain:       configuration.GetString("Terminal", "autocert_domain", ""),
		Email:        configuration.GetString("Terminal", "autocert_email", ""),
		CertCacheDir: configuration.GetString("Terminal", "cert_cache_dir", "./certs"),
		CertFile:     configuration.GetString("Terminal", "cert_file", ""),
		KeyFile:      configuration.GetString("Terminal", "key_file", ""),
	}
}

// NewTLSManager validates config and prepares the certificate source. With
// neither a domain nor a certificate pair TLS stays disabled.
func NewTLSManager(config *TLSConfig) (*TLSManager, error) {
	manager := &TLSManager{config: config}
	if err := manager.validateConfig(); err != nil {
		return nil, fmt.Errorf("TLS configuration validation failed: %v", err)
	}
	switch {
	case config.Domain != "":
		if err := manager.initializeAutocert(); err != nil {
			return nil, fmt.Errorf("TLS initialization failed: %v", err)
		}
	case config.CertFile != "":
		logger.Info(logger.AreaTerminal, "[TLS] Using certificate %s", config.CertFile)
	}
	return manager, nil
}

// validateConfig validates the TLS configuration
func (tm *TLSManager) validateConfig() error {
	c := tm.config
	c.Domain = strings.TrimSpace(c.Domain)
	if c.Domain != "" && c.CertFile != "" {
		return fmt.Errorf("autocert_domain and cert_file are mutually exclusive")
	}
	if c.Domain != "" && strings.Contains(c.Domain, ":") {
		return fmt.Errorf("domain must not contain a port: %s", c.Domain)
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("cert_file and key_file must be set together")
	}
	for _, f := range []string{c.CertFile, c.KeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("certificate file: %v", err)
		}
	}
	return nil
}

// initializeAutocert sets up Let's Encrypt certificate management
func (tm *TLSManager) initializeAutocert() error {
	logger.Info(logger.AreaTerminal, "[TLS] Initializing autocert for domain: %s", tm.config.Domain)

	if err := os.MkdirAll(tm.config.CertCacheDir, 0700); err != nil {
		return fmt.Errorf("failed to create certificate cache directory: %v", err)
	}

	tm.autocertMgr = &autocert.Manager{
		Cache:      autocert.DirCache(tm.config.CertCacheDir),
		Prompt:     autocert.AcceptTOS,
		Email:      tm.config.Email,
		HostPolicy: autocert.HostWhitelist(tm.config.Domain),
	}
	tm.tlsConfig = tm.autocertMgr.TLSConfig()
	tm.tlsConfig.MinVersion = tls.VersionTLS12
	return nil
}

// IsEnabled returns true if the server should listen with TLS
func (tm *TLSManager) IsEnabled() bool {
	return tm.autocertMgr != nil || tm.config.CertFile != ""
}

// GetTLSConfig returns the TLS configuration for the HTTP server, nil for a
// fixed certificate pair or disabled TLS.
func (tm *TLSManager) GetTLSConfig() *tls.Config {
	return tm.tlsConfig
}

// GetCertFiles returns the certificate and key file paths (for manual TLS)
func (tm *TLSManager) GetCertFiles() (string, string) {
	return tm.config.CertFile, tm.config.KeyFile
}

// GetHTTPHandler wraps fallback so that ACME http-01 challenges are
// answered. Without autocert it returns fallback unchanged.
func (tm *TLSManager) GetHTTPHandler(fallback http.Handler) http.Handler {
	if tm.autocertMgr != nil {
		return tm.autocertMgr.HTTPHandler(fallback)
	}
	return fallback
}

// ListenAndServe runs srv with the configured TLS mode.
func (tm *TLSManager) ListenAndServe(srv *http.Server) error {
	switch {
	case tm.autocertMgr != nil:
		srv.TLSConfig = tm.tlsConfig
		return srv.ListenAndServeTLS("", "")
	case tm.config.CertFile != "":
		return srv.ListenAndServeTLS(tm.config.CertFile, tm.config.KeyFile)
	}
	return srv.ListenAndServe()
}

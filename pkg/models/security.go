package models

import "path/filepath"

// TLSPaths locates the certificate material for an mTLS connection.
type TLSPaths struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	CAFile   string `json:"ca_file"`
}

// SecurityConfig configures transport security for the message bus.
// Mode "mtls" is the only secured mode; anything else means plaintext.
type SecurityConfig struct {
	Mode       string   `json:"mode"`
	CertDir    string   `json:"cert_dir"`
	ServerName string   `json:"server_name"`
	TLS        TLSPaths `json:"tls"`
}

// NormalizePaths resolves relative certificate paths against CertDir.
func (s *SecurityConfig) NormalizePaths() {
	if s.CertDir == "" {
		return
	}

	if s.TLS.CertFile != "" && !filepath.IsAbs(s.TLS.CertFile) {
		s.TLS.CertFile = filepath.Join(s.CertDir, s.TLS.CertFile)
	}

	if s.TLS.KeyFile != "" && !filepath.IsAbs(s.TLS.KeyFile) {
		s.TLS.KeyFile = filepath.Join(s.CertDir, s.TLS.KeyFile)
	}

	if s.TLS.CAFile != "" && !filepath.IsAbs(s.TLS.CAFile) {
		s.TLS.CAFile = filepath.Join(s.CertDir, s.TLS.CAFile)
	}
}

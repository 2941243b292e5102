// Package natsutil builds NATS connection security from service
// configuration.
package natsutil

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/fieldpipe/pkg/models"
)

var (
	// ErrMTLSRequired is returned when mTLS security is required but not configured
	ErrMTLSRequired = errors.New("mtls security required")
	// ErrCAParsingFailed is returned when CA certificate cannot be parsed
	ErrCAParsingFailed = errors.New("failed to parse CA certificate")
)

// TLSConfig builds a tls.Config for connecting to NATS using mTLS.
func TLSConfig(sec *models.SecurityConfig) (*tls.Config, error) {
	if sec == nil || sec.Mode != "mtls" {
		return nil, ErrMTLSRequired
	}

	sec.NormalizePaths()

	cert, err := tls.LoadX509KeyPair(sec.TLS.CertFile, sec.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(sec.TLS.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, ErrCAParsingFailed
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		ServerName:   sec.ServerName,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// ConnectOptions returns the nats.Options for the configured security
// mode. A nil or non-mtls config yields no options, meaning a plain
// connection.
func ConnectOptions(sec *models.SecurityConfig) ([]nats.Option, error) {
	if sec == nil || sec.Mode != "mtls" {
		return nil, nil
	}

	tlsConf, err := TLSConfig(sec)
	if err != nil {
		return nil, err
	}

	return []nats.Option{
		nats.Secure(tlsConf),
		nats.RootCAs(sec.TLS.CAFile),
		nats.ClientCert(sec.TLS.CertFile, sec.TLS.KeyFile),
	}, nil
}

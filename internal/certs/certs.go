// Package certs keeps a self-signed certificate for serving the API over HTTPS on loopback.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	validFor = 365 * 24 * time.Hour
	// renewBefore regenerates certificates that expire within this window.
	renewBefore = 30 * 24 * time.Hour
)

// ErrCertificateInvalid is wrapped when a stored certificate cannot be used.
var ErrCertificateInvalid = errors.New("certificate not usable")

// FileManager stores a certificate and key pair in a directory.
type FileManager struct {
	now      func() time.Time
	certDir  string
	certFile string
	keyFile  string
	hosts    []string
}

// NewFileManager creates a manager storing quest.crt and quest.key in certDir.
// The certificate always covers localhost and the loopback addresses; extra
// host names or IPs can be added.
func NewFileManager(certDir string, extraHosts ...string) *FileManager {
	hosts := append([]string{"localhost", "127.0.0.1", "::1"}, extraHosts...)
	return &FileManager{
		now:      time.Now,
		certDir:  certDir,
		certFile: filepath.Join(certDir, "quest.crt"),
		keyFile:  filepath.Join(certDir, "quest.key"),
		hosts:    hosts,
	}
}

// Paths returns the certificate and key file paths.
func (m *FileManager) Paths() (certFile, keyFile string) {
	return m.certFile, m.keyFile
}

// GetOrCreateCertificate loads the stored certificate, replacing it when it is
// missing, unreadable, close to expiry or does not cover the configured hosts.
func (m *FileManager) GetOrCreateCertificate() (tls.Certificate, error) {
	if cert, err := tls.LoadX509KeyPair(m.certFile, m.keyFile); err == nil && m.verify(cert) == nil {
		return cert, nil
	}
	return m.generate()
}

// TLSConfig returns a server configuration using the managed certificate.
func (m *FileManager) TLSConfig() (*tls.Config, error) {
	cert, err := m.GetOrCreateCertificate()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (m *FileManager) generate() (tls.Certificate, error) {
	if err := os.MkdirAll(m.certDir, 0700); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := m.now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"quest"}, CommonName: "localhost"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range m.hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to encode private key: %w", err)
	}

	if err := writePEM(m.certFile, "CERTIFICATE", der); err != nil {
		return tls.Certificate{}, err
	}
	if err := writePEM(m.keyFile, "EC PRIVATE KEY", keyDER); err != nil {
		return tls.Certificate{}, err
	}
	return tls.LoadX509KeyPair(m.certFile, m.keyFile)
}

func (m *FileManager) verify(cert tls.Certificate) error {
	if len(cert.Certificate) == 0 {
		return fmt.Errorf("%w: empty chain", ErrCertificateInvalid)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCertificateInvalid, err)
	}

	now := m.now()
	if now.Before(leaf.NotBefore) {
		return fmt.Errorf("%w: not valid before %s", ErrCertificateInvalid, leaf.NotBefore.Format(time.RFC3339))
	}
	if now.Add(renewBefore).After(leaf.NotAfter) {
		return fmt.Errorf("%w: expires %s", ErrCertificateInvalid, leaf.NotAfter.Format(time.RFC3339))
	}
	for _, h := range m.hosts {
		if err := leaf.VerifyHostname(h); err != nil {
			return fmt.Errorf("%w: %v", ErrCertificateInvalid, err)
		}
	}
	return nil
}

func writePEM(path, blockType string, der []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) //nolint:gosec // path is built from the certificate directory
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

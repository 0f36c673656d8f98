package tcr

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
)

// TLSConfig represents settings for configuring TLS.
type TLSConfig struct {
	EnableTLS         bool   `json:"EnableTLS" yaml:"EnableTLS"`
	PEMCertLocation   string `json:"PEMCertLocation" yaml:"PEMCertLocation"`
	LocalCertLocation string `json:"LocalCertLocation" yaml:"LocalCertLocation"`
	CertServerName    string `json:"CertServerName" yaml:"CertServerName"`
}

// CreateTLSConfig creates a x509 TLS Config for use in TLS-based communication.
// LocalCertLocation is optional and holds both the client cert and key.
func CreateTLSConfig(pemLocation string, localLocation string, serverName string) (*tls.Config, error) {
	cfg := &tls.Config{
		RootCAs:    x509.NewCertPool(),
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}

	ca, err := os.ReadFile(pemLocation)
	if err != nil {
		return nil, err
	}

	if ok := cfg.RootCAs.AppendCertsFromPEM(ca); !ok {
		return nil, errors.New("no certificates found in " + pemLocation)
	}

	if localLocation == "" {
		return cfg, nil
	}

	cert, err := tls.LoadX509KeyPair(localLocation, localLocation)
	if err != nil {
		return nil, err
	}

	cfg.Certificates = append(cfg.Certificates, cert)
	return cfg, nil
}

func (tc *TLSConfig) build() (*tls.Config, error) {
	if tc == nil || !tc.EnableTLS {
		return nil, nil
	}

	return CreateTLSConfig(tc.PEMCertLocation, tc.LocalCertLocation, tc.CertServerName)
}

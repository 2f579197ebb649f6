package certificates

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"
)

// DefaultKeySize is the RSA modulus size of generated certificates.
const DefaultKeySize = 2048

// CreateOptions describes a self-signed encryption certificate.
type CreateOptions struct {
	CommonName string
	ValidFor   time.Duration
	KeySize    int
}

// CreateSelfSigned generates an RSA key and a self-signed certificate
// usable for key encipherment.
func CreateSelfSigned(opts CreateOptions) (*Certificate, error) {
	if opts.CommonName == "" {
		return nil, fmt.Errorf("certificate common name is required")
	}
	if opts.ValidFor <= 0 {
		opts.ValidFor = 10 * 365 * 24 * time.Hour
	}
	if opts.KeySize == 0 {
		opts.KeySize = DefaultKeySize
	}

	key, err := rsa.GenerateKey(rand.Reader, opts.KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: opts.CommonName},
		Issuer:                pkix.Name{CommonName: opts.CommonName},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(opts.ValidFor),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse generated certificate: %w", err)
	}

	return &Certificate{X509: cert, PrivateKey: key}, nil
}

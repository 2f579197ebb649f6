package certificates

import (
	"bytes"
	"crypto/rsa"
	"crypto/sha1" // #nosec G505 -- thumbprints are SHA-1 by definition.
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
	"github.com/PolarWolf314/pkgseal/internal/secrets"

	"software.sslmate.com/src/go-pkcs12"
)

// Certificate is an X.509 certificate with an optional RSA private key.
type Certificate struct {
	X509       *x509.Certificate
	PrivateKey *rsa.PrivateKey
}

// Thumbprint returns the uppercase hex SHA-1 digest of the DER encoding.
func (c *Certificate) Thumbprint() string {
	sum := sha1.Sum(c.X509.Raw) // #nosec G401
	return secrets.ToHex(sum[:])
}

// Subject returns the certificate's distinguished name.
func (c *Certificate) Subject() string {
	return c.X509.Subject.String()
}

// HasPrivateKey reports whether the certificate can unwrap keys.
func (c *Certificate) HasPrivateKey() bool {
	return c.PrivateKey != nil
}

// Encrypt wraps data with the certificate's RSA public key.
func (c *Certificate) Encrypt(data []byte) ([]byte, error) {
	pub, ok := c.X509.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate %s does not carry an RSA public key", c.Thumbprint())
	}
	return secrets.EncryptWithPublicKey(data, pub)
}

// UnwrapSessionKey recovers a session key wrapped by Encrypt and stored
// as hex.
func (c *Certificate) UnwrapSessionKey(wrappedHex string) ([]byte, error) {
	return secrets.UnwrapSessionKey(wrappedHex, c.PrivateKey)
}

// EncodePEM returns the certificate followed by its PKCS #8 private key, if any.
func (c *Certificate) EncodePEM() ([]byte, error) {
	var buf bytes.Buffer
	if err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: c.X509.Raw}); err != nil {
		return nil, err
	}
	if c.PrivateKey != nil {
		der, err := x509.MarshalPKCS8PrivateKey(c.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal private key: %w", err)
		}
		if err := pem.Encode(&buf, &pem.Block{Type: "PRIVATE KEY", Bytes: der}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// EncodePKCS12 returns a password-protected PKCS #12 container.
func (c *Certificate) EncodePKCS12(password string) ([]byte, error) {
	if c.PrivateKey == nil {
		return pkcs12.Modern.EncodeTrustStore([]*x509.Certificate{c.X509}, password)
	}
	return pkcs12.Modern.Encode(c.PrivateKey, c.X509, nil, password)
}

// LoadContainer reads a certificate container from disk.
func LoadContainer(path, password string) (*Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", kerrors.ErrCertificateFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read certificate %s: %w", path, err)
	}
	return ParseContainer(data, password)
}

// ParseContainer parses a PKCS #12 container, falling back to a PEM bundle.
func ParseContainer(data []byte, password string) (*Certificate, error) {
	if key, cert, err := pkcs12.Decode(data, password); err == nil {
		return newCertificate(cert, key)
	}
	if certs, err := pkcs12.DecodeTrustStore(data, password); err == nil && len(certs) > 0 {
		return &Certificate{X509: certs[0]}, nil
	}
	return ParsePEM(data)
}

// ParsePEM parses the first certificate and private key of a PEM bundle.
func ParsePEM(data []byte) (*Certificate, error) {
	var cert *x509.Certificate
	var key any

	for rest := data; ; {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		switch block.Type {
		case "CERTIFICATE":
			if cert != nil {
				continue
			}
			parsed, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse certificate: %w", err)
			}
			cert = parsed
		case "PRIVATE KEY":
			parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse private key: %w", err)
			}
			key = parsed
		case "RSA PRIVATE KEY":
			parsed, err := x509.ParsePKCS1PrivateKey(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse private key: %w", err)
			}
			key = parsed
		}
	}

	if cert == nil {
		return nil, errors.New("no certificate found in container")
	}
	return newCertificate(cert, key)
}

func newCertificate(cert *x509.Certificate, key any) (*Certificate, error) {
	c := &Certificate{X509: cert}
	if key == nil {
		return c, nil
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unsupported private key type %T", key)
	}
	if !rsaKey.PublicKey.Equal(cert.PublicKey) {
		return nil, errors.New("private key does not match certificate")
	}
	c.PrivateKey = rsaKey
	return c, nil
}

package workflows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PolarWolf314/pkgseal/internal/certificates"
	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
)

// CreateCertificateOptions configures the certificate create workflow.
type CreateCertificateOptions struct {
	CommonName string
	ValidFor   time.Duration
	KeySize    int

	// Output is the PKCS #12 file to write. A .pem extension writes a PEM
	// bundle instead.
	Output   string
	Password string

	// Force overwrites an existing output file.
	Force bool

	// Import also adds the certificate to the named store.
	Import        bool
	StoreLocation string
	StoreName     string
}

// CreateCertificateResult contains the outcome of a create operation.
type CreateCertificateResult struct {
	Thumbprint string
	Subject    string
	NotAfter   time.Time
	Output     string

	// Store is set when the certificate was imported.
	Store *ImportCertificateResult
}

// CreateCertificate generates a self-signed encryption certificate.
//
// Returns ErrIOFailure if the output exists and Force is not set, or if it
// cannot be written.
func CreateCertificate(ctx context.Context, opts CreateCertificateOptions) (*CreateCertificateResult, error) {
	if opts.Output == "" {
		return nil, fmt.Errorf("an output file is required")
	}
	if !opts.Force {
		if _, err := os.Stat(opts.Output); err == nil {
			return nil, fmt.Errorf("%w: %s already exists", kerrors.ErrIOFailure, opts.Output)
		}
	}

	cert, err := certificates.CreateSelfSigned(certificates.CreateOptions{
		CommonName: opts.CommonName,
		ValidFor:   opts.ValidFor,
		KeySize:    opts.KeySize,
	})
	if err != nil {
		return nil, err
	}

	var data []byte
	if strings.EqualFold(filepath.Ext(opts.Output), ".pem") {
		data, err = cert.EncodePEM()
	} else {
		data, err = cert.EncodePKCS12(opts.Password)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode certificate: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.Output), 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrIOFailure, err)
	}
	if err := os.WriteFile(opts.Output, data, 0600); err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrIOFailure, err)
	}

	result := &CreateCertificateResult{
		Thumbprint: cert.Thumbprint(),
		Subject:    cert.Subject(),
		NotAfter:   cert.X509.NotAfter,
		Output:     opts.Output,
	}

	if opts.Import {
		imported, err := addToStore(cert, opts.StoreLocation, opts.StoreName)
		if err != nil {
			return result, err
		}
		result.Store = imported
	}
	return result, nil
}

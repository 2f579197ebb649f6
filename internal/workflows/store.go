package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/PolarWolf314/pkgseal/internal/audit"
	"github.com/PolarWolf314/pkgseal/internal/certificates"
)

// ImportCertificateOptions configures the store import workflow.
type ImportCertificateOptions struct {
	// File is a PKCS #12 container or PEM bundle.
	File string

	// Data holds the container instead of File when set.
	Data []byte

	Password string

	StoreLocation string
	StoreName     string
}

// ImportCertificateResult describes a certificate added to a store.
type ImportCertificateResult struct {
	Thumbprint    string
	Subject       string
	Location      certificates.Location
	Store         string
	HasPrivateKey bool
}

// ImportCertificate adds the certificate in a container file to a store.
//
// Returns ErrCertificateFileNotFound if the file does not exist.
// Returns ErrStoreUnavailable if the store cannot be opened.
func ImportCertificate(ctx context.Context, opts ImportCertificateOptions) (*ImportCertificateResult, error) {
	var cert *certificates.Certificate
	var err error
	if opts.Data != nil {
		cert, err = certificates.ParseContainer(opts.Data, opts.Password)
	} else {
		cert, err = certificates.LoadContainer(opts.File, opts.Password)
	}
	if err != nil {
		return nil, err
	}
	return addToStore(cert, opts.StoreLocation, opts.StoreName)
}

func addToStore(cert *certificates.Certificate, locationName, storeName string) (*ImportCertificateResult, error) {
	store, err := openStore(locationName, storeName)
	if err != nil {
		return nil, err
	}
	if err := store.Add(cert); err != nil {
		return nil, err
	}

	audit.Log(audit.StoreLogPath(store.Location == certificates.LocalMachine), audit.Entry{
		Operation:  "import",
		Location:   string(store.Location),
		Store:      store.Name,
		Thumbprint: cert.Thumbprint(),
		Subject:    cert.Subject(),
	})

	return &ImportCertificateResult{
		Thumbprint:    cert.Thumbprint(),
		Subject:       cert.Subject(),
		Location:      store.Location,
		Store:         store.Name,
		HasPrivateKey: cert.HasPrivateKey(),
	}, nil
}

// StoreOptions selects a store.
type StoreOptions struct {
	StoreLocation string
	StoreName     string
}

// CertificateInfo summarises a stored certificate.
type CertificateInfo struct {
	Thumbprint    string
	Subject       string
	Issuer        string
	SerialNumber  string
	NotAfter      time.Time
	HasPrivateKey bool
}

// ListCertificatesResult contains the certificates of a store.
type ListCertificatesResult struct {
	Location     certificates.Location
	Store        string
	Certificates []CertificateInfo
}

// ListCertificates lists the certificates of a store, ordered by thumbprint.
//
// Returns ErrStoreUnavailable if the store cannot be opened.
func ListCertificates(ctx context.Context, opts StoreOptions) (*ListCertificatesResult, error) {
	store, err := openStore(opts.StoreLocation, opts.StoreName)
	if err != nil {
		return nil, err
	}
	certs, err := store.Certificates()
	if err != nil {
		return nil, err
	}

	result := &ListCertificatesResult{Location: store.Location, Store: store.Name}
	for _, c := range certs {
		result.Certificates = append(result.Certificates, CertificateInfo{
			Thumbprint:    c.Thumbprint(),
			Subject:       c.Subject(),
			Issuer:        c.X509.Issuer.String(),
			SerialNumber:  fmt.Sprintf("%X", c.X509.SerialNumber),
			NotAfter:      c.X509.NotAfter,
			HasPrivateKey: c.HasPrivateKey(),
		})
	}
	return result, nil
}

// RemoveCertificateOptions configures the store remove workflow.
type RemoveCertificateOptions struct {
	StoreOptions
	Thumbprint string
}

// RemoveCertificate deletes a certificate from a store.
//
// Returns ErrCertificateNotFound if the store holds no such certificate.
func RemoveCertificate(ctx context.Context, opts RemoveCertificateOptions) error {
	if !certificates.IsThumbprintValid(opts.Thumbprint) {
		return fmt.Errorf("invalid thumbprint %q", opts.Thumbprint)
	}
	store, err := openStore(opts.StoreLocation, opts.StoreName)
	if err != nil {
		return err
	}
	if err := store.Remove(opts.Thumbprint); err != nil {
		return err
	}

	audit.Log(audit.StoreLogPath(store.Location == certificates.LocalMachine), audit.Entry{
		Operation:  "remove",
		Location:   string(store.Location),
		Store:      store.Name,
		Thumbprint: opts.Thumbprint,
	})
	return nil
}

func openStore(locationName, storeName string) (*certificates.Store, error) {
	location, err := certificates.ParseLocation(locationName)
	if err != nil {
		return nil, err
	}
	return certificates.OpenStore(location, storeName)
}

// Package errors provides typed error values for pkgseal.
//
// Using sentinel errors allows callers to handle specific error conditions
// programmatically with errors.Is() rather than string matching. This makes
// error handling more robust and refactoring-safe.
//
// # Error Categories
//
// Errors are grouped by category:
//
//   - Configuration errors: fatal to a run (ErrConfigNotFound, ErrConfigCorrupt)
//   - Certificate errors: fatal to a run (ErrCertificateNotFound, ErrCertificateMismatch)
//   - Crypto errors: cipher and key failures (ErrFormat, ErrCrypto, ErrVerificationFailed)
//   - File errors: per-file failures that never abort a batch (ErrFileCorrupted)
//   - Carrier errors: assembly image problems (ErrInvalidImage, ErrCarrierPayloadMissing)
//
// # Usage
//
// Return errors from internal packages:
//
//	if cfg.Metadata.Certificate == "" {
//	    return nil, errors.ErrConfigCorrupt
//	}
//
// Handle errors in the CLI layer:
//
//	result, err := workflows.Decrypt(ctx, opts)
//	if errors.Is(err, kerrors.ErrCertificateNotFound) {
//	    // Show user-friendly message
//	}
//
// Wrap errors with additional context:
//
//	return fmt.Errorf("reading %s: %w", path, errors.ErrIOFailure)
package errors

// Package workflows provides high-level orchestration for pkgseal commands.
//
// Workflows coordinate the lower level packages (configs, certificates,
// packaging, isolated, audit) to implement complete user-facing features.
// Each workflow handles a single command's business logic, independent of
// CLI concerns like flag parsing, spinners, and output formatting.
//
// # Design Philosophy
//
// The cmd/ package should be a thin layer that:
//   - Parses command-line flags and arguments
//   - Calls the appropriate workflow function
//   - Formats the result for display
//
// Workflows handle everything else:
//   - Loading the build manifest or the encryption configuration
//   - Resolving the certificate
//   - Performing the core operation
//   - Recording audit trail entries for store changes
//
// # Available Workflows
//
//   - Encrypt: Runs an encryption session over the files of a build manifest
//   - Decrypt: Restores the files listed in an encryption configuration
//   - CreateCertificate: Generates a self-signed encryption certificate
//   - ImportCertificate, ListCertificates, RemoveCertificate: Manage stores
//   - Log: Reads a store location's audit log
//
// # Error Handling
//
// Workflows return typed errors from the internal/errors package, allowing
// the CLI layer to provide appropriate user-facing messages without string
// matching. Use errors.Is() to check for specific error conditions:
//
//	result, err := workflows.Decrypt(ctx, opts)
//	if errors.Is(err, kerrors.ErrCertificateMismatch) {
//	    // Explain which certificate is required
//	}
//
// Decrypt is the exception for per-file problems: those are reported in
// DecryptResult.Failed and logged as warnings, never returned.
//
// # Context Usage
//
// All workflow functions accept a context.Context as their first parameter.
// Encrypt and Decrypt check it between files; the out-of-process unpacker
// is bound to it.
package workflows

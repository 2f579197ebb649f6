package errors

import "errors"

// Configuration errors are fatal to a decrypt run: no files are processed.
var (
	// ErrConfigNotFound indicates the encryption configuration file does not exist.
	ErrConfigNotFound = errors.New("encryption configuration not found")

	// ErrConfigInvalid indicates the encryption configuration could not be parsed.
	ErrConfigInvalid = errors.New("encryption configuration is invalid")

	// ErrConfigCorrupt indicates the configuration parsed but misses required metadata.
	ErrConfigCorrupt = errors.New("encryption configuration metadata is corrupted")

	// ErrInvalidManifest indicates the build manifest is malformed or incomplete.
	ErrInvalidManifest = errors.New("build manifest is invalid")
)

// Certificate errors indicate the wrapping certificate could not be used.
var (
	// ErrCertificateNotFound indicates no candidate certificate was found.
	ErrCertificateNotFound = errors.New("certificate not found")

	// ErrCertificateMismatch indicates the resolved certificate is not the one the configuration requires.
	ErrCertificateMismatch = errors.New("certificate thumbprint differs from configuration")

	// ErrCertificateFileNotFound indicates an explicitly named certificate source file is missing.
	ErrCertificateFileNotFound = errors.New("certificate source file not found")

	// ErrPrivateKeyMissing indicates the certificate carries no usable RSA private key.
	ErrPrivateKeyMissing = errors.New("certificate has no RSA private key")

	// ErrNoCertificate indicates files were flagged for encryption but no certificate was supplied.
	ErrNoCertificate = errors.New("no encryption certificate supplied")

	// ErrStoreUnavailable indicates a certificate store could not be opened.
	ErrStoreUnavailable = errors.New("certificate store unavailable")
)

// Cryptographic errors indicate failures during encryption or decryption operations.
var (
	// ErrFormat indicates a ciphertext buffer is not framed as expected.
	ErrFormat = errors.New("malformed encrypted payload")

	// ErrCrypto indicates the derived key failed to transform the ciphertext.
	ErrCrypto = errors.New("failed to decrypt payload")

	// ErrKeyDecryptFailed indicates the wrapped session key could not be unwrapped.
	ErrKeyDecryptFailed = errors.New("failed to decrypt session key")

	// ErrVerificationFailed indicates decrypted content does not hash to the recorded original.
	ErrVerificationFailed = errors.New("decrypted content failed verification")
)

// File errors indicate issues with individual protected files.
var (
	// ErrFileNotFound indicates a protected file is missing from disk.
	ErrFileNotFound = errors.New("file not found")

	// ErrFileCorrupted indicates a file matches neither its encrypted nor its original digest.
	ErrFileCorrupted = errors.New("file hash matches neither encrypted nor original content")

	// ErrNoFilesFound indicates no files matched the provided patterns.
	ErrNoFilesFound = errors.New("no matching files found")

	// ErrIOFailure indicates a read, write or rename failed.
	ErrIOFailure = errors.New("file system operation failed")
)

// Carrier errors indicate problems with synthesized or foreign assembly images.
var (
	// ErrInvalidImage indicates a file is not a parsable managed image.
	ErrInvalidImage = errors.New("invalid managed image")

	// ErrCarrierPayloadMissing indicates a carrier image holds no embedded payload.
	ErrCarrierPayloadMissing = errors.New("carrier payload missing")
)

// Usage errors indicate invalid command input.
var (
	// ErrInvalidDateFormat indicates a date filter is not YYYY-MM-DD.
	ErrInvalidDateFormat = errors.New("invalid date format")
)

// Package secrets provides the cryptographic primitives of pkgseal.
//
// # Encryption Architecture
//
// pkgseal uses a hybrid scheme:
//
//  1. A random session key (32 hex characters) is generated per build
//  2. Each protected file is encrypted with a key derived from that session key
//  3. The session key is wrapped with the RSA public key of a certificate
//
// The decrypt tool unwraps the session key with the certificate's private
// key and decrypts every file with it.
//
// # Payload Format
//
// Encrypt derives a 256-bit AES key with PBKDF2-HMAC-SHA1 (1000
// iterations, fixed salt) and encrypts in CBC mode with PKCS#7 padding:
//
//	[uint32 little-endian IV length][IV][ciphertext]
//
// The framing is kept byte-compatible with previously produced packages.
//
// # Content Addressing
//
// Files are identified by uppercase hex MD5 digests (HashBytes, HashFile).
// The decrypt tool uses them to tell plaintext, ciphertext and corrupted
// files apart, which makes re-running it a no-op.
//
// # Key Hygiene
//
// Derived keys and padded buffers are zeroed before they are released.
// Callers holding a session key should Zeroize it once done.
package secrets

package secrets

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"fmt"
	"runtime"

	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
	"github.com/google/uuid"
)

// SessionKeyLength is the number of hex characters in a session key.
const SessionKeyLength = 32

// CreateSessionKey returns a fresh random session key as 32 hex characters.
func CreateSessionKey() ([]byte, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	key := make([]byte, hex.EncodedLen(len(id)))
	hex.Encode(key, id[:])
	return key, nil
}

// EncryptWithPublicKey wraps data with an RSA public key (PKCS #1 v1.5).
func EncryptWithPublicKey(data []byte, publicKey *rsa.PublicKey) ([]byte, error) {
	return rsa.EncryptPKCS1v15(rand.Reader, publicKey, data)
}

// DecryptWithPrivateKey unwraps data with an RSA private key (PKCS #1 v1.5).
func DecryptWithPrivateKey(ciphertext []byte, privateKey *rsa.PrivateKey) ([]byte, error) {
	return rsa.DecryptPKCS1v15(rand.Reader, privateKey, ciphertext)
}

// UnwrapSessionKey hex-decodes wrappedHex and decrypts it with privateKey.
// Every failure wraps ErrKeyDecryptFailed.
func UnwrapSessionKey(wrappedHex string, privateKey *rsa.PrivateKey) ([]byte, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrKeyDecryptFailed, kerrors.ErrPrivateKeyMissing)
	}
	wrapped, err := FromHex(wrappedHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrKeyDecryptFailed, err)
	}
	key, err := DecryptWithPrivateKey(wrapped, privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kerrors.ErrKeyDecryptFailed, err)
	}
	return key, nil
}

// Zeroize overwrites b with zeros.
func Zeroize(b []byte) {
	zeroize(b)
}

func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

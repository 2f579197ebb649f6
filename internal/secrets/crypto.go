package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"io"

	kerrors "github.com/PolarWolf314/pkgseal/internal/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// keyDerivationIterations matches the PBKDF2 default of the format's first producer.
	keyDerivationIterations = 1000
	derivedKeySize          = 32
	ivLengthPrefixSize      = 4
)

// keyDerivationSalt is fixed so that payloads stay decryptable from the password alone.
var keyDerivationSalt = []byte("4a7185c888e52c62d")

// Encrypt seals plaintext with a key derived from password.
//
// The result is framed as [uint32 LE IV length][IV][AES-256-CBC ciphertext]
// so the IV travels with the payload.
func Encrypt(plaintext []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", kerrors.ErrFormat)
	}

	key := deriveKey(password)
	defer zeroize(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	defer zeroize(padded)

	out := make([]byte, ivLengthPrefixSize+len(iv)+len(padded))
	binary.LittleEndian.PutUint32(out, uint32(len(iv)))
	copy(out[ivLengthPrefixSize:], iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[ivLengthPrefixSize+len(iv):], padded)

	return out, nil
}

// Decrypt reverses Encrypt.
//
// Returns ErrFormat when the framing is truncated and ErrCrypto when the
// derived key does not produce validly padded plaintext.
func Decrypt(ciphertext []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: empty password", kerrors.ErrFormat)
	}
	if len(ciphertext) < ivLengthPrefixSize {
		return nil, fmt.Errorf("%w: payload of %d bytes has no IV length prefix", kerrors.ErrFormat, len(ciphertext))
	}

	ivLength := binary.LittleEndian.Uint32(ciphertext)
	if uint64(len(ciphertext)-ivLengthPrefixSize) < uint64(ivLength) {
		return nil, fmt.Errorf("%w: IV length %d exceeds payload", kerrors.ErrFormat, ivLength)
	}
	if ivLength != aes.BlockSize {
		return nil, fmt.Errorf("%w: unsupported IV length %d", kerrors.ErrFormat, ivLength)
	}

	iv := ciphertext[ivLengthPrefixSize : ivLengthPrefixSize+ivLength]
	body := ciphertext[ivLengthPrefixSize+ivLength:]
	if len(body) == 0 || len(body)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of the block size", kerrors.ErrCrypto, len(body))
	}

	key := deriveKey(password)
	defer zeroize(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		zeroize(plain)
		return nil, err
	}

	return unpadded, nil
}

func deriveKey(password string) []byte {
	return pbkdf2.Key([]byte(password), keyDerivationSalt, keyDerivationIterations, derivedKeySize, sha1.New)
}

func pkcs7Pad(src []byte, blockSize int) []byte {
	padding := blockSize - (len(src) % blockSize)
	out := make([]byte, len(src), len(src)+padding)
	copy(out, src)
	return append(out, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(src []byte, blockSize int) ([]byte, error) {
	length := len(src)
	padding := int(src[length-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("%w: invalid padding", kerrors.ErrCrypto)
	}
	for i := length - padding; i < length; i++ {
		if src[i] != byte(padding) {
			return nil, fmt.Errorf("%w: invalid padding", kerrors.ErrCrypto)
		}
	}
	return src[:length-padding], nil
}

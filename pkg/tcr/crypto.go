package tcr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	defaultNonceSize  = 12 // 12 is the standard
	defaultHashLength = 32 // AES-256
)

// GetHashWithArgon uses Argon2id to hash a passphrase with a provided salt and return the hash as bytes.
func GetHashWithArgon(passphrase, salt string, timeConsideration uint32, multiplier uint32, threads uint8, hashLength uint32) []byte {

	if passphrase == "" || salt == "" {
		return nil
	}

	if timeConsideration == 0 {
		timeConsideration = 1
	}

	if multiplier == 0 {
		multiplier = 64
	}

	if threads == 0 {
		threads = 1
	}

	return argon2.IDKey([]byte(passphrase), []byte(salt), timeConsideration, multiplier*1024, threads, hashLength)
}

// key returns Hashkey, deriving it from Passphrase and Salt on first use.
func (ec *EncryptionConfig) key() []byte {
	if len(ec.Hashkey) == 0 {
		ec.Hashkey = GetHashWithArgon(ec.Passphrase, ec.Salt, ec.TimeConsideration, ec.MemoryMultiplier, ec.Threads, defaultHashLength)
	}

	return ec.Hashkey
}

// EncryptWithAes encrypts bytes based on an AES-256 compatible hashed key.
// If nonceSize is outside 12..32, the standard, 12, is used.
func EncryptWithAes(data, hashedKey []byte, nonceSize int) ([]byte, error) {

	if len(data) == 0 || len(hashedKey) == 0 {
		return nil, errors.New("data or hash can't be zero length")
	}

	if nonceSize < 12 || nonceSize > 32 {
		nonceSize = defaultNonceSize
	}

	aesGcm, err := newGcm(hashedKey, nonceSize)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return aesGcm.Seal(nonce, nonce, data, nil), nil
}

// DecryptWithAes decrypts bytes based on an Aes compatible hashed key.
func DecryptWithAes(cipherDataWithNonce, hashedKey []byte, nonceSize int) ([]byte, error) {

	if nonceSize < 12 || nonceSize > 32 {
		nonceSize = defaultNonceSize
	}

	if len(hashedKey) == 0 || len(cipherDataWithNonce) <= nonceSize {
		return nil, errors.New("hash can't be zero length and cipher data must be longer than the nonce")
	}

	aesGcm, err := newGcm(hashedKey, nonceSize)
	if err != nil {
		return nil, err
	}

	return aesGcm.Open(nil, cipherDataWithNonce[:nonceSize], cipherDataWithNonce[nonceSize:], nil)
}

func newGcm(hashedKey []byte, nonceSize int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(hashedKey) // errors unless the key is 16, 24, or 32 bytes
	if err != nil {
		return nil, err
	}

	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

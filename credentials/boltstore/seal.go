package boltstore

import (
	"crypto/rand"
	"fmt"
	"io"

	apperrors "github.com/jrsteele09/go-storefront-gateway/internal/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	saltLength  = 16
	nonceLength = 24

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// sealer encrypts stored values with NaCl secretbox under an argon2id-derived key.
type sealer struct {
	key [32]byte
}

func newSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

func newSealer(passphrase string, salt []byte) *sealer {
	s := &sealer{}
	copy(s.key[:], argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, 32))
	return s
}

// seal returns nonce || box
func (s *sealer) seal(plain []byte) ([]byte, error) {
	var nonce [nonceLength]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *sealer) open(data []byte) ([]byte, error) {
	if len(data) < nonceLength+secretbox.Overhead {
		return nil, apperrors.ErrSealedValue
	}
	var nonce [nonceLength]byte
	copy(nonce[:], data[:nonceLength])
	plain, ok := secretbox.Open(nil, data[nonceLength:], &nonce, &s.key)
	if !ok {
		return nil, apperrors.ErrSealedValue
	}
	return plain, nil
}

package hashing

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"confidee-relayer/internal/util"
)

var ErrPepperTooLong = errors.New("token pepper must be at most 64 bytes")

// TokenHasher derives the at-rest key for a bearer token so a dump of the
// session backend does not hand out usable credentials.
type TokenHasher struct {
	pepper []byte
}

// NewTokenHasher keys the digest with pepper. An empty pepper is replaced by
// a random one, which means persisted sessions do not survive a restart.
func NewTokenHasher(pepper string) (*TokenHasher, error) {
	key := []byte(pepper)
	if len(key) > blake2b.Size {
		return nil, ErrPepperTooLong
	}
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate token pepper: %w", err)
		}
		util.Warn("SESSION_TOKEN_PEPPER not set, using ephemeral pepper")
	}
	return &TokenHasher{pepper: key}, nil
}

// Digest returns hex(blake2b-256(token)) keyed with the pepper.
func (h *TokenHasher) Digest(token string) string {
	mac, err := blake2b.New256(h.pepper)
	if err != nil {
		// key length is validated in NewTokenHasher
		panic(err)
	}
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Package signature verifies wallet-signed session challenges.
package signature

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidAddress   = errors.New("invalid wallet address")
	ErrChallengeExpired = errors.New("challenge message expired")
	ErrInvalidSignature = errors.New("invalid signature")
)

// DefaultWindow bounds how old a signed challenge may be.
const DefaultWindow = 5 * time.Minute

const challengeTemplate = "Sign this message to create a session for Confidee.\n\n" +
	"This will allow gasless transactions without signing each time.\n\n" +
	"Timestamp: %d\n" +
	"Address: %s"

// ChallengeMessage renders the exact text the wallet signs. The address is
// embedded as submitted, without case normalization.
func ChallengeMessage(timestampMs int64, address string) string {
	return fmt.Sprintf(challengeTemplate, timestampMs, address)
}

// Verifier checks EIP-191 personal_sign signatures over the challenge.
type Verifier struct {
	window time.Duration
	now    func() time.Time
}

func NewVerifier(window time.Duration, now func() time.Time) *Verifier {
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Verifier{window: window, now: now}
}

// Verify checks that signatureHex was produced by the key controlling
// address over the challenge for timestampMs. Timestamps outside the window
// in either direction are rejected before any cryptography runs.
func (v *Verifier) Verify(address, signatureHex string, timestampMs int64) error {
	if !common.IsHexAddress(address) {
		return ErrInvalidAddress
	}

	issued := time.UnixMilli(timestampMs)
	age := v.now().Sub(issued)
	if age > v.window || age < -v.window {
		return ErrChallengeExpired
	}

	sig, err := decodeSignature(signatureHex)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	digest := accounts.TextHash([]byte(ChallengeMessage(timestampMs, address)))
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if crypto.PubkeyToAddress(*pub) != common.HexToAddress(address) {
		return ErrInvalidSignature
	}
	return nil
}

// decodeSignature returns a 65-byte [R || S || V] signature with V in {0,1}.
func decodeSignature(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return nil, err
	}
	if len(raw) != crypto.SignatureLength {
		return nil, fmt.Errorf("expected %d bytes, got %d", crypto.SignatureLength, len(raw))
	}

	sig := make([]byte, len(raw))
	copy(sig, raw)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return nil, errors.New("unsupported recovery id")
	}
	return sig, nil
}

package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"confidee-relayer/internal/hashing"
	"confidee-relayer/internal/model"
	"confidee-relayer/internal/repository"
	"confidee-relayer/internal/signature"
	"confidee-relayer/internal/util"
)

const (
	DefaultSessionTTL = 24 * time.Hour
	tokenBytes        = 32
)

// CreateSessionRequest is the signed challenge submitted by a wallet.
type CreateSessionRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"` // unix millis
}

// SessionGrant is returned once per successful handshake.
type SessionGrant struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionService turns a verified challenge into a bearer session and
// resolves bearer tokens back to sessions.
type SessionService struct {
	verifier *signature.Verifier
	store    repository.SessionStore
	hasher   *hashing.TokenHasher
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewSessionService(
	verifier *signature.Verifier,
	store repository.SessionStore,
	hasher *hashing.TokenHasher,
	ttl time.Duration,
	now func() time.Time,
	logger *zap.Logger,
) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		verifier: verifier,
		store:    store,
		hasher:   hasher,
		ttl:      ttl,
		now:      now,
		logger:   logger,
	}
}

// CreateSession verifies the signature and stores a fresh session for the
// lowercase address. No chain interaction happens here.
func (s *SessionService) CreateSession(ctx context.Context, req CreateSessionRequest) (SessionGrant, error) {
	address := strings.TrimSpace(req.Address)
	sig := strings.TrimSpace(req.Signature)
	if address == "" || sig == "" || req.Timestamp == 0 {
		return SessionGrant{}, ErrMissingFields
	}

	if err := s.verifier.Verify(address, sig, req.Timestamp); err != nil {
		s.logger.Debug("Session challenge rejected",
			util.String("address", address),
			util.ErrorField(err))
		return SessionGrant{}, err
	}

	if removed, err := s.store.Sweep(ctx); err != nil {
		s.logger.Warn("Session sweep failed", util.ErrorField(err))
	} else if removed > 0 {
		s.logger.Debug("Swept expired sessions", util.Int("removed", removed))
	}

	token, err := newToken()
	if err != nil {
		return SessionGrant{}, err
	}

	now := s.now()
	session := model.Session{
		Address:   strings.ToLower(address),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Put(ctx, token, session); err != nil {
		return SessionGrant{}, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info("Session created",
		util.String("address", session.Address),
		util.String("token", s.tokenRef(token)),
		util.Time("expires_at", session.ExpiresAt))

	return SessionGrant{Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Resolve returns the live session behind token or ErrInvalidSession.
func (s *SessionService) Resolve(ctx context.Context, token string) (model.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Session{}, ErrInvalidSession
	}

	session, err := s.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return model.Session{}, ErrInvalidSession
		}
		return model.Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// Logout deletes token. Unknown tokens are not an error.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidSession
	}
	if err := s.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info("Session deleted", util.String("token", s.tokenRef(token)))
	return nil
}

func (s *SessionService) tokenRef(token string) string {
	if s.hasher == nil {
		return ""
	}
	return util.ShortToken(s.hasher.Digest(token))
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

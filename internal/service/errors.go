package service

import (
	"errors"
	"fmt"

	"confidee-relayer/internal/repository"
	"confidee-relayer/internal/signature"
)

var (
	ErrMissingFields        = errors.New("missing required fields")
	ErrInvalidSecretID      = errors.New("invalid secretId")
	ErrContentTooLong       = errors.New("content too long")
	ErrInvalidAction        = errors.New("invalid action")
	ErrInvalidSession       = repository.ErrSessionNotFound
	ErrRelayerNotConfigured = errors.New("relayer not configured")
	ErrDuplicateRequest     = errors.New("duplicate request")
	ErrTransactionReverted  = errors.New("transaction reverted")

	ErrInvalidAddress   = signature.ErrInvalidAddress
	ErrChallengeExpired = signature.ErrChallengeExpired
	ErrInvalidSignature = signature.ErrInvalidSignature
)

// QuotaError reports an exhausted daily quota for Action.
type QuotaError struct {
	Action string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("Daily %s limit reached", e.Action)
}

// ExecutionError is a contract or network failure. TxHash is set once the
// transaction was broadcast, so callers can tell a failed submission from
// a failed inclusion.
type ExecutionError struct {
	TxHash string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("transaction %s: %v", e.TxHash, e.Err)
	}
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Err }

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindQuota
	KindConfig
	KindExecution
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindQuota:
		return "quota"
	case KindConfig:
		return "config"
	case KindExecution:
		return "execution"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// KindOf classifies err. Anything unrecognized, including store failures,
// is KindInternal.
func KindOf(err error) Kind {
	var quotaErr *QuotaError
	var execErr *ExecutionError

	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &quotaErr):
		return KindQuota
	case errors.As(err, &execErr):
		return KindExecution
	case errors.Is(err, ErrMissingFields),
		errors.Is(err, ErrInvalidSecretID),
		errors.Is(err, ErrContentTooLong),
		errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrInvalidAddress):
		return KindValidation
	case errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrChallengeExpired),
		errors.Is(err, ErrInvalidSession):
		return KindAuth
	case errors.Is(err, ErrRelayerNotConfigured):
		return KindConfig
	case errors.Is(err, ErrDuplicateRequest):
		return KindConflict
	default:
		return KindInternal
	}
}

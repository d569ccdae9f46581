package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"confidee-relayer/internal/chain"
	"confidee-relayer/internal/events"
	"confidee-relayer/internal/model"
	"confidee-relayer/internal/ratelimit"
	"confidee-relayer/internal/ttlcache"
	"confidee-relayer/internal/util"
)

const (
	DefaultMaxContentLength = 5000
	DefaultIdempotencyTTL   = 60 * time.Second
	maxEventErrorLength     = 300
)

// Signer submits contract calls with the custodial relayer key. The acting
// wallet travels as a call argument, never as the transaction sender.
type Signer interface {
	Configured() bool
	ContractAddress() common.Address
	Submit(ctx context.Context, entryPoint string, args ...interface{}) (common.Hash, error)
	WaitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// RelayOptions tunes request validation and deduplication.
type RelayOptions struct {
	MaxContentLength int
	IdempotencyTTL   time.Duration
}

// RelayService executes one gasless action per call:
// received -> session_validated -> quota_reserved -> submitted -> confirmed,
// or exits early as rejected, or late as failed. Nothing is retried.
type RelayService struct {
	sessions  *SessionService
	limiter   *ratelimit.Limiter
	signer    Signer
	publisher events.Publisher
	seen      ttlcache.Store[string, struct{}]
	opts      RelayOptions
	now       func() time.Time
	logger    *zap.Logger
}

func NewRelayService(
	sessions *SessionService,
	limiter *ratelimit.Limiter,
	signer Signer,
	publisher events.Publisher,
	seen ttlcache.Store[string, struct{}],
	opts RelayOptions,
	now func() time.Time,
	logger *zap.Logger,
) *RelayService {
	if opts.MaxContentLength <= 0 {
		opts.MaxContentLength = DefaultMaxContentLength
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = DefaultIdempotencyTTL
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	if seen == nil {
		seen = ttlcache.NewMemory[string, struct{}](ttlcache.WithClock(now))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelayService{
		sessions:  sessions,
		limiter:   limiter,
		signer:    signer,
		publisher: publisher,
		seen:      seen,
		opts:      opts,
		now:       now,
		logger:    logger,
	}
}

type relayArgs struct {
	secretID *big.Int
	content  string
}

// Execute runs req to a terminal state. Errors before quota is reserved
// leave no trace; errors after it are published as audit events.
func (r *RelayService) Execute(ctx context.Context, req model.RelayRequest) (model.RelayResult, error) {
	started := r.now()
	log := r.logger.With(util.String("action", req.Action))
	log.Debug("Relay received")

	args, err := r.validate(req)
	if err != nil {
		return model.RelayResult{}, err
	}

	session, err := r.sessions.Resolve(ctx, req.SessionToken)
	if err != nil {
		return model.RelayResult{}, err
	}
	log = log.With(util.String("address", session.Address))
	log.Debug("Relay session validated")

	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		scoped := session.Address + ":" + key
		if !r.seen.SetIfAbsent(scoped, struct{}{}, r.now().Add(r.opts.IdempotencyTTL)) {
			log.Info("Duplicate relay request dropped", util.String("idempotency_key", key))
			return model.RelayResult{}, ErrDuplicateRequest
		}
	}

	allowed, err := r.limiter.Check(ctx, session.Address, req.Action)
	if err != nil {
		return model.RelayResult{}, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		log.Info("Relay rejected, quota exhausted")
		return model.RelayResult{}, &QuotaError{Action: req.Action}
	}
	log.Debug("Relay quota reserved")

	// The submission must outlive a disconnected client.
	result, err := r.dispatch(context.WithoutCancel(ctx), log, session, req.Action, args)
	r.record(ctx, session, req.Action, started, result, err)

	switch {
	case err == nil:
		log.Info("Relay confirmed",
			util.String("tx_hash", result.TxHash),
			util.String("secret_id", result.SecretID),
			util.Duration("duration", r.now().Sub(started)))
	case KindOf(err) == KindExecution:
		log.Error("Relay failed", util.ErrorField(err))
	default:
		log.Warn("Relay rejected", util.ErrorField(err))
	}

	return result, err
}

func (r *RelayService) validate(req model.RelayRequest) (relayArgs, error) {
	if strings.TrimSpace(req.Action) == "" || strings.TrimSpace(req.SessionToken) == "" {
		return relayArgs{}, ErrMissingFields
	}

	var args relayArgs
	var err error
	switch req.Action {
	case model.ActionLike, model.ActionUnlike:
		args.secretID, err = parseSecretID(req.Data.SecretID)
	case model.ActionComment:
		if args.secretID, err = parseSecretID(req.Data.SecretID); err == nil {
			args.content, err = r.parseContent(req.Data.Content)
		}
	case model.ActionPost:
		args.content, err = r.parseContent(req.Data.Content)
	}
	return args, err
}

func parseSecretID(id model.FlexibleID) (*big.Int, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, ErrMissingFields
	}
	n, ok := id.Int()
	if !ok {
		return nil, ErrInvalidSecretID
	}
	return n, nil
}

func (r *RelayService) parseContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrMissingFields
	}
	if utf8.RuneCountInString(content) > r.opts.MaxContentLength {
		return "", ErrContentTooLong
	}
	return content, nil
}

func (r *RelayService) dispatch(ctx context.Context, log *zap.Logger, session model.Session, action string, args relayArgs) (model.RelayResult, error) {
	if r.signer == nil || !r.signer.Configured() {
		return model.RelayResult{}, ErrRelayerNotConfigured
	}

	user := common.HexToAddress(session.Address)

	var method string
	var callArgs []interface{}
	switch action {
	case model.ActionLike:
		method, callArgs = chain.MethodLikeSecretFor, []interface{}{args.secretID, user}
	case model.ActionUnlike:
		method, callArgs = chain.MethodUnlikeSecretFor, []interface{}{args.secretID, user}
	case model.ActionComment:
		method, callArgs = chain.MethodAddCommentFor, []interface{}{args.secretID, args.content, user}
	case model.ActionPost:
		method, callArgs = chain.MethodCreateSecretFor, []interface{}{args.content, user}
	default:
		return model.RelayResult{}, ErrInvalidAction
	}

	txHash, err := r.signer.Submit(ctx, method, callArgs...)
	if err != nil {
		return model.RelayResult{}, &ExecutionError{Err: err}
	}
	result := model.RelayResult{TxHash: txHash.Hex()}
	log.Debug("Relay submitted", util.String("method", method), util.String("tx_hash", result.TxHash))

	receipt, err := r.signer.WaitForReceipt(ctx, txHash)
	if err != nil {
		return result, &ExecutionError{TxHash: result.TxHash, Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return result, &ExecutionError{TxHash: result.TxHash, Err: ErrTransactionReverted}
	}

	if action == model.ActionPost {
		if id, ok := secretIDFromReceipt(receipt, r.signer.ContractAddress()); ok {
			result.SecretID = id
		} else {
			log.Warn("Post confirmed without SecretCreated log", util.String("tx_hash", result.TxHash))
		}
	}
	return result, nil
}

// secretIDFromReceipt reads the first indexed topic of the first log the
// contract emitted.
func secretIDFromReceipt(receipt *types.Receipt, contract common.Address) (string, bool) {
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != contract || len(lg.Topics) < 2 {
			continue
		}
		return new(big.Int).SetBytes(lg.Topics[1].Bytes()).String(), true
	}
	return "", false
}

func (r *RelayService) record(ctx context.Context, session model.Session, action string, started time.Time, result model.RelayResult, err error) {
	now := r.now()
	event := model.RelayEvent{
		EventID:    uuid.New(),
		Action:     action,
		Address:    session.Address,
		Status:     model.RelayStatusConfirmed,
		TxHash:     result.TxHash,
		SecretID:   result.SecretID,
		DurationMs: now.Sub(started).Milliseconds(),
		OccurredAt: now.UTC(),
	}

	var execErr *ExecutionError
	if err != nil {
		event.Status = model.RelayStatusRejected
		if errors.As(err, &execErr) {
			event.Status = model.RelayStatusFailed
		}
		event.Error = util.SanitizeMessage(err.Error(), maxEventErrorLength)
	}

	if pubErr := r.publisher.Publish(context.WithoutCancel(ctx), event); pubErr != nil {
		r.logger.Warn("Failed to publish relay event",
			util.String("event_id", event.EventID.String()),
			util.ErrorField(pubErr))
	}
}

// Package service owns the payment configuration, validates tip requests
// against it and drives the transport. It is the boundary where raw
// failures are converted into normalized payment results; no error escapes
// unclassified.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/autotip/tipcore/logger"
	"github.com/autotip/tipcore/metrics"
	"github.com/autotip/tipcore/payerr"
	"github.com/autotip/tipcore/signer"
	"github.com/autotip/tipcore/transport"
	"github.com/autotip/tipcore/types"
)

// PaymentService processes tip payments.
type PaymentService struct {
	cfg       *types.Config
	submitter transport.Submitter
	log       logger.Logger
	rec       metrics.Recorder
	validate  *validator.Validate
	maxAmount decimal.Decimal

	mu  sync.RWMutex
	sgn signer.Signer
}

// Option configures a PaymentService.
type Option func(*PaymentService)

func WithLogger(l logger.Logger) Option {
	return func(s *PaymentService) {
		s.log = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *PaymentService) {
		s.rec = r
	}
}

// WithSubmitter overrides the HTTP transport, mainly for tests.
func WithSubmitter(sub transport.Submitter) Option {
	return func(s *PaymentService) {
		s.submitter = sub
	}
}

// New creates a payment service from a validated configuration.
func New(cfg *types.Config, opts ...Option) (*PaymentService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	maxAmount, err := decimal.NewFromString(cfg.MaxPaymentAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid maxPaymentAmount: %w", err)
	}

	s := &PaymentService{
		cfg:       cfg,
		log:       logger.NoopLogger{},
		rec:       metrics.NoopRecorder{},
		validate:  validator.New(),
		maxAmount: maxAmount,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.submitter == nil {
		s.submitter = transport.New(cfg, s.log)
	}

	return s, nil
}

// RegisterSigner swaps the wallet signer. Passing nil withdraws it. The
// signer reference is snapshotted at the start of each payment, so a swap
// never affects a call already in flight.
func (s *PaymentService) RegisterSigner(sgn signer.Signer) {
	s.mu.Lock()
	s.sgn = sgn
	s.mu.Unlock()
}

// IsReady reports whether a usable signer is currently registered. The
// value is advisory; ProcessTipPayment re-checks its own snapshot.
func (s *PaymentService) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sgn != nil
}

// ProcessTipPayment validates the request, submits it and builds the
// normalized result. Local policy failures (missing signer, amount over the
// limit) are reported with specific messages and never reach the transport.
func (s *PaymentService) ProcessTipPayment(ctx context.Context, req *types.PaymentRequest) *types.PaymentResult {
	s.mu.RLock()
	sgn := s.sgn
	s.mu.RUnlock()

	if sgn == nil {
		return failure(payerr.CodeWalletNotConnected, "signer not initialized")
	}

	if err := s.validateRequest(req); err != nil {
		return failure(payerr.CodeInvalidAmount, err.Error())
	}

	start := time.Now()
	labels := map[string]string{"interaction": req.InteractionType.String()}

	hash, err := s.submitter.Submit(ctx, s.buildPaymentEndpoint(req), &types.TipPayload{
		Amount:          req.Amount,
		TokenAddress:    req.TokenAddress,
		Recipient:       req.Recipient,
		InteractionType: req.InteractionType,
		PostId:          req.PostId,
	}, sgn)

	s.rec.ObserveLatency("process_tip_payment", time.Since(start), labels)

	if err != nil {
		perr := payerr.Classify(err)
		s.rec.IncCounter("payment_failure", labels)
		s.log.Warn("tip payment failed", map[string]any{
			"postId":      req.PostId,
			"interaction": req.InteractionType.String(),
			"code":        string(perr.Code),
			"error":       perr.Message,
		})

		return &types.PaymentResult{
			Success:   false,
			Error:     perr.UserMessage,
			ErrorCode: string(perr.Code),
		}
	}

	if hash == "" {
		s.rec.IncCounter("payment_failure", labels)
		return failure(payerr.CodeUnknown, "no transaction hash received from payment")
	}

	s.rec.IncCounter("payment_success", labels)
	s.log.Info("tip payment succeeded", map[string]any{
		"postId":      req.PostId,
		"interaction": req.InteractionType.String(),
		"txHash":      hash,
	})

	// Sender and receiver identifiers belong to the session layer and stay
	// unset here.
	return &types.PaymentResult{
		Success:         true,
		TransactionHash: hash,
		TransactionLog: &types.TransactionLog{
			TransactionHash: hash,
			Amount:          req.Amount,
			TokenAddress:    req.TokenAddress,
			InteractionType: req.InteractionType,
			Timestamp:       time.Now(),
			Status:          types.StatusSuccess,
		},
	}
}

// validateRequest applies the local policy checks that must never be
// delegated to the transport.
func (s *PaymentService) validateRequest(req *types.PaymentRequest) error {
	if req == nil {
		return fmt.Errorf("payment request is required")
	}

	if err := req.Validate(); err != nil {
		return err
	}

	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("invalid payment request: %w", err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", req.Amount, err)
	}

	if amount.GreaterThan(s.maxAmount) {
		return fmt.Errorf("payment amount %s exceeds maximum allowed %s", req.Amount, s.cfg.MaxPaymentAmount)
	}

	return nil
}

// buildPaymentEndpoint derives the tipping endpoint for a request. The same
// inputs always produce the same endpoint.
func (s *PaymentService) buildPaymentEndpoint(req *types.PaymentRequest) string {
	return fmt.Sprintf("%s/tip/%s/%s", s.cfg.PaymentEndpoint, req.PostId, req.InteractionType)
}

// TransactionURL returns the block-explorer link for a transaction hash.
func (s *PaymentService) TransactionURL(hash string) string {
	return fmt.Sprintf("%s/tx/%s", s.cfg.BlockExplorerURL, hash)
}

// Config exposes the immutable payment configuration.
func (s *PaymentService) Config() *types.Config {
	return s.cfg
}

func failure(code payerr.Code, msg string) *types.PaymentResult {
	return &types.PaymentResult{
		Success:   false,
		Error:     msg,
		ErrorCode: string(code),
	}
}

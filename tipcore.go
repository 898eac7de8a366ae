// Package tipcore turns user interactions (like, recast, comment) into tip
// payments over the x402 protocol and reports a normalized transaction
// record back to the caller.
package tipcore

import (
	"context"
	"sync"

	"github.com/autotip/tipcore/logger"
	"github.com/autotip/tipcore/metrics"
	"github.com/autotip/tipcore/payerr"
	"github.com/autotip/tipcore/service"
	"github.com/autotip/tipcore/signer"
	"github.com/autotip/tipcore/types"
)

// State is the orchestrator's initialization state.
type State int

const (
	// StateUninitialized means no wallet signer is available yet.
	StateUninitialized State = iota

	// StateReady means a signer is registered and tips can be requested.
	StateReady
)

// Orchestrator is the session-scoped entry point for tip payments. It
// tracks whether a signer is available, whether a payment is in flight, and
// the most recent transaction or error. At most one payment is in flight
// per orchestrator instance; different instances may run concurrently and
// share nothing but the immutable configuration.
type Orchestrator struct {
	svc *service.PaymentService
	log logger.Logger
	rec metrics.Recorder

	mu          sync.Mutex
	state       State
	processing  bool
	lastTx      *types.TransactionLog
	lastErr     string
	lastErrCode payerr.Code
}

// New creates an orchestrator in the Uninitialized state. It becomes Ready
// once SignerChanged delivers a signer.
func New(cfg *types.Config, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		log: logger.NoopLogger{},
		rec: metrics.NoopRecorder{},
	}

	settings := &options{}
	for _, opt := range opts {
		opt(settings)
	}

	if settings.logger != nil {
		o.log = settings.logger
	}
	if settings.recorder != nil {
		o.rec = settings.recorder
	}

	svcOpts := []service.Option{
		service.WithLogger(o.log),
		service.WithMetrics(o.rec),
	}
	if settings.submitter != nil {
		svcOpts = append(svcOpts, service.WithSubmitter(settings.submitter))
	}

	svc, err := service.New(cfg, svcOpts...)
	if err != nil {
		return nil, err
	}

	o.svc = svc
	return o, nil
}

// SignerChanged is the explicit notification point for wallet connects and
// disconnects. A non-nil signer moves the orchestrator to Ready; nil moves
// it back to Uninitialized. An in-flight payment keeps the signer snapshot
// it started with.
func (o *Orchestrator) SignerChanged(sgn signer.Signer) {
	o.svc.RegisterSigner(sgn)

	o.mu.Lock()
	defer o.mu.Unlock()

	if sgn != nil {
		o.state = StateReady
		o.lastErr = ""
		o.lastErrCode = ""
		o.log.Debug("signer connected", map[string]any{"address": sgn.Address().Hex()})
	} else {
		o.state = StateUninitialized
		o.log.Debug("signer disconnected", nil)
	}
}

// RequestTip runs one payment through the service. Calls made while the
// orchestrator is not Ready, or while another payment is in flight, are
// rejected synchronously without touching the payment service.
func (o *Orchestrator) RequestTip(ctx context.Context, req *types.PaymentRequest) *types.PaymentResult {
	o.mu.Lock()

	if o.state != StateReady {
		perr := payerr.New(payerr.CodeWalletNotConnected, "payment service not initialized")
		o.lastErr = perr.UserMessage
		o.lastErrCode = perr.Code
		o.mu.Unlock()

		return &types.PaymentResult{
			Success:   false,
			Error:     perr.UserMessage,
			ErrorCode: string(perr.Code),
		}
	}

	if o.processing {
		perr := payerr.New(payerr.CodeWalletNotConnected, "a payment is already in progress")
		o.mu.Unlock()

		return &types.PaymentResult{
			Success:   false,
			Error:     perr.Message,
			ErrorCode: string(perr.Code),
		}
	}

	o.processing = true
	o.lastErr = ""
	o.lastErrCode = ""
	o.mu.Unlock()

	result := o.svc.ProcessTipPayment(ctx, req)

	o.mu.Lock()
	o.processing = false
	if result.Success && result.TransactionLog != nil {
		o.lastTx = result.TransactionLog
	} else {
		o.lastErr = result.Error
		o.lastErrCode = payerr.Code(result.ErrorCode)
	}
	o.mu.Unlock()

	return result
}

// NewTipRequest builds a request for an interaction using the configured
// default tip amount and token.
func (o *Orchestrator) NewTipRequest(interaction types.InteractionType, postId, recipient string) *types.PaymentRequest {
	cfg := o.svc.Config()
	return &types.PaymentRequest{
		Amount:          cfg.DefaultAmount(interaction),
		TokenAddress:    cfg.TokenAddress,
		Recipient:       recipient,
		InteractionType: interaction,
		PostId:          postId,
	}
}

// IsInitialized reports whether a signer is available.
func (o *Orchestrator) IsInitialized() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == StateReady
}

// IsProcessing reports whether a payment is currently in flight.
func (o *Orchestrator) IsProcessing() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.processing
}

// LastTransaction returns the most recent successful transaction, or nil.
// Only the single most recent record is retained.
func (o *Orchestrator) LastTransaction() *types.TransactionLog {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastTx
}

// LastError returns the user-facing text of the most recent failure, or an
// empty string.
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// RecoveryAction returns the call-to-action label for the most recent
// failure, or an empty string when there is none.
func (o *Orchestrator) RecoveryAction() string {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.lastErr == "" {
		return ""
	}
	return payerr.RecoveryAction(o.lastErrCode)
}

// ClearError resets the last error without affecting an in-flight payment.
func (o *Orchestrator) ClearError() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastErr = ""
	o.lastErrCode = ""
}

// TransactionURL returns the block-explorer link for a transaction hash.
func (o *Orchestrator) TransactionURL(hash string) string {
	return o.svc.TransactionURL(hash)
}

// Package transport performs the HTTP call to the remote tipping endpoint
// and resolves x402 "payment required" challenges. A 402 response is
// answered with a signed payment authorization and the original request is
// resubmitted exactly once; there is no retry loop.
package transport

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/autotip/tipcore/logger"
	"github.com/autotip/tipcore/payerr"
	"github.com/autotip/tipcore/signer"
	"github.com/autotip/tipcore/types"
	"github.com/autotip/tipcore/utils"
)

// Wire headers of the x402 tip flow.
const (
	HeaderPaymentRequirements = "X-Payment-Requirements"
	HeaderPayment             = "X-Payment"
	HeaderTransactionHash     = "X-Transaction-Hash"
)

const maxResponseBytes = 1 << 20

// Submitter is the contract the payment service depends on.
type Submitter interface {
	Submit(ctx context.Context, endpoint string, payload *types.TipPayload, sgn signer.Signer) (string, error)
}

// StatusError is a terminal non-2xx response from the tipping endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("payment endpoint returned status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("payment endpoint returned status %d", e.StatusCode)
}

// HTTPStatus exposes the final status for error classification.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

var _ Submitter = (*Transport)(nil)

// Transport submits tip payments over HTTP.
type Transport struct {
	cfg    *types.Config
	client *http.Client
	log    logger.Logger
}

// New creates a transport bound to the configured payment timeout.
func New(cfg *types.Config, log logger.Logger) *Transport {
	if log == nil {
		log = logger.NoopLogger{}
	}

	return &Transport{
		cfg:    cfg,
		client: &http.Client{},
		log:    log,
	}
}

// tipResponse is the JSON body of a successful tip call.
type tipResponse struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash"`
	Message         string `json:"message"`
}

// Submit POSTs the tip payload and returns the transaction hash reported by
// the endpoint. All failures surface as error values; nothing panics past
// this boundary.
func (t *Transport) Submit(ctx context.Context, endpoint string, payload *types.TipPayload, sgn signer.Signer) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.PaymentTimeout)
	defer cancel()

	status, headers, body, err := t.post(ctx, endpoint, payload, "")
	if err != nil {
		return "", err
	}

	if status == http.StatusPaymentRequired {
		return t.resolveChallenge(ctx, endpoint, payload, sgn, headers, body)
	}

	return extractHash(status, headers, body)
}

// resolveChallenge answers a 402 by signing the advertised requirements and
// resubmitting the original request once.
func (t *Transport) resolveChallenge(ctx context.Context, endpoint string, payload *types.TipPayload, sgn signer.Signer, headers http.Header, body []byte) (string, error) {
	if sgn == nil {
		return "", payerr.New(payerr.CodeWalletNotConnected, "payment required but no wallet signer is available")
	}

	reqs, err := decodeRequirements(headers, body)
	if err != nil {
		return "", err
	}

	t.log.Debug("payment required, signing authorization", map[string]any{
		"endpoint": endpoint,
		"payTo":    reqs.PayTo,
		"amount":   reqs.MaxAmountRequired,
	})

	header, err := t.buildPaymentHeader(ctx, reqs, sgn)
	if err != nil {
		return "", err
	}

	status, respHeaders, respBody, err := t.post(ctx, endpoint, payload, header)
	if err != nil {
		return "", err
	}

	if status == http.StatusPaymentRequired {
		return "", &StatusError{StatusCode: status, Body: "payment not accepted after authorization"}
	}

	return extractHash(status, respHeaders, respBody)
}

// post issues one POST and returns the status, headers and body. A non-nil
// paymentHeader is attached as the X-Payment header.
func (t *Transport) post(ctx context.Context, endpoint string, payload *types.TipPayload, paymentHeader string) (int, http.Header, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if paymentHeader != "" {
		req.Header.Set(HeaderPayment, paymentHeader)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("payment request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, resp.Header, data, nil
}

// buildPaymentHeader signs an EIP-3009 authorization for the advertised
// requirements and encodes it as an X-Payment header value.
func (t *Transport) buildPaymentHeader(ctx context.Context, reqs *types.PaymentRequirements, sgn signer.Signer) (string, error) {
	maxAtomic, err := utils.ParseAmountWithDecimals(t.cfg.MaxPaymentAmount, t.cfg.TokenDecimals)
	if err != nil {
		return "", fmt.Errorf("invalid max payment amount: %w", err)
	}

	// The signer is never invoked for values above the configured maximum.
	if !signer.ValueWithinLimit(reqs.MaxAmountRequired, maxAtomic) {
		return "", fmt.Errorf("required amount %s exceeds maximum allowed %s", reqs.MaxAmountRequired, t.cfg.MaxPaymentAmount)
	}

	nonce, err := utils.RandomNonce()
	if err != nil {
		return "", err
	}

	validFor := time.Duration(reqs.MaxTimeoutSeconds) * time.Second
	if validFor <= 0 {
		validFor = 10 * time.Minute
	}

	auth := types.EIP3009Authorization{
		From:        sgn.Address().Hex(),
		To:          reqs.PayTo,
		Value:       reqs.MaxAmountRequired,
		ValidAfter:  "0",
		ValidBefore: strconv.FormatInt(time.Now().Add(validFor).Unix(), 10),
		Nonce:       nonce,
	}

	sig, err := sgn.SignTransferAuthorization(ctx, t.domainFor(reqs), auth)
	if err != nil {
		return "", fmt.Errorf("failed to sign payment authorization: %w", err)
	}

	inner, err := json.Marshal(types.ExactEVMPayload{
		Signature:     sig,
		Authorization: auth,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode authorization: %w", err)
	}

	envelope, err := json.Marshal(types.PaymentPayload{
		X402Version: types.X402Version,
		Scheme:      reqs.Scheme,
		Network:     reqs.Network,
		Payload:     base64.StdEncoding.EncodeToString(inner),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode payment payload: %w", err)
	}

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// domainFor resolves the EIP-712 signing domain for the challenged token.
// Servers may override the token name and version via requirements extra.
func (t *Transport) domainFor(reqs *types.PaymentRequirements) types.EIP712Domain {
	domain := t.cfg.Domain()
	domain.VerifyingContract = reqs.Asset

	if name, ok := reqs.Extra["name"].(string); ok && name != "" {
		domain.Name = name
	}
	if version, ok := reqs.Extra["version"].(string); ok && version != "" {
		domain.Version = version
	}

	return domain
}

// decodeRequirements extracts the payment requirements advertised with a
// 402: a base64 JSON X-Payment-Requirements header, with the JSON body's
// accepts list as fallback.
func decodeRequirements(headers http.Header, body []byte) (*types.PaymentRequirements, error) {
	if raw := headers.Get(HeaderPaymentRequirements); raw != "" {
		data, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("malformed %s header: %w", HeaderPaymentRequirements, err)
		}

		var reqs types.PaymentRequirements
		if err := json.Unmarshal(data, &reqs); err != nil {
			return nil, fmt.Errorf("malformed payment requirements: %w", err)
		}

		if err := reqs.Validate(); err != nil {
			return nil, err
		}

		return &reqs, nil
	}

	var challenge struct {
		Accepts []types.PaymentRequirements `json:"accepts"`
	}
	if err := json.Unmarshal(body, &challenge); err == nil && len(challenge.Accepts) > 0 {
		reqs := challenge.Accepts[0]
		if err := reqs.Validate(); err != nil {
			return nil, err
		}
		return &reqs, nil
	}

	return nil, fmt.Errorf("payment required but no payment requirements were advertised")
}

// extractHash pulls the transaction hash out of a final response. The hash
// may arrive in the JSON body or in the X-Transaction-Hash header.
func extractHash(status int, headers http.Header, body []byte) (string, error) {
	if status < 200 || status >= 300 {
		return "", &StatusError{StatusCode: status, Body: truncate(body, 256)}
	}

	var parsed tipResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.TransactionHash != "" {
		return parsed.TransactionHash, nil
	}

	return headers.Get(HeaderTransactionHash), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}

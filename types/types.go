package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InteractionType is the user action that qualifies for a tip.
type InteractionType string

const (
	InteractionLike    InteractionType = "like"
	InteractionRecast  InteractionType = "recast"
	InteractionComment InteractionType = "comment"
)

// IsValid reports whether the interaction type is one of the known kinds.
func (i InteractionType) IsValid() bool {
	return i == InteractionLike || i == InteractionRecast || i == InteractionComment
}

func (i InteractionType) String() string {
	return string(i)
}

// TransactionStatus tracks the lifecycle of a tip transaction.
type TransactionStatus string

const (
	StatusProcessing TransactionStatus = "processing"
	StatusSuccess    TransactionStatus = "success"
	StatusFailed     TransactionStatus = "failed"
)

// PaymentRequest describes a single tip to be paid out for a user
// interaction. It is immutable once constructed; the calling UI builds one
// per user action.
type PaymentRequest struct {
	// Amount of the tip as a decimal string (e.g. "0.01"), never a float.
	Amount string `json:"amount" validate:"required"`

	// TokenAddress is the ERC20 contract the tip is denominated in.
	TokenAddress string `json:"tokenAddress" validate:"required,eth_addr"`

	// Recipient receives the tip.
	Recipient string `json:"recipient" validate:"required,eth_addr"`

	// InteractionType is the action being rewarded.
	InteractionType InteractionType `json:"interactionType" validate:"required,oneof=like recast comment"`

	// PostId identifies the post the interaction happened on.
	PostId string `json:"postId" validate:"required"`
}

// Validate checks the request for structural problems that should never
// reach the transport layer.
func (r *PaymentRequest) Validate() error {
	if r.Amount == "" {
		return fmt.Errorf("amount is required")
	}

	amt, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", r.Amount, err)
	}

	if !amt.IsPositive() {
		return fmt.Errorf("amount must be greater than 0")
	}

	if !r.InteractionType.IsValid() {
		return fmt.Errorf("invalid interaction type %q", r.InteractionType)
	}

	if r.PostId == "" {
		return fmt.Errorf("postId is required")
	}

	if r.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}

	return nil
}

// TransactionLog is the durable unit surfaced to the UI after a successful
// tip. A single most-recent copy is retained per orchestrator; there is no
// history log in this core.
type TransactionLog struct {
	TransactionHash string            `json:"transactionHash"`
	SenderId        int64             `json:"senderId"`
	ReceiverId      int64             `json:"receiverId"`
	Amount          string            `json:"amount"`
	TokenAddress    string            `json:"tokenAddress"`
	InteractionType InteractionType   `json:"interactionType"`
	Timestamp       time.Time         `json:"timestamp"`
	Status          TransactionStatus `json:"status"`
}

// PaymentResult is the normalized outcome of a tip payment. Exactly one of
// TransactionLog (on success) or Error (on failure) is populated.
type PaymentResult struct {
	Success         bool            `json:"success"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	Error           string          `json:"error,omitempty"`
	ErrorCode       string          `json:"errorCode,omitempty"`
	TransactionLog  *TransactionLog `json:"transactionLog,omitempty"`
}

// TipPayload is the JSON body POSTed to the tipping endpoint.
type TipPayload struct {
	Amount          string          `json:"amount"`
	TokenAddress    string          `json:"tokenAddress"`
	Recipient       string          `json:"recipient"`
	InteractionType InteractionType `json:"interactionType"`
	PostId          string          `json:"postId"`
}

// PaymentRequirements is the payment challenge a resource server advertises
// alongside a 402 response.
type PaymentRequirements struct {
	// Scheme of the payment protocol to use (e.g. "exact").
	Scheme string `json:"scheme"`

	// Network of the blockchain to send payment on (e.g. "base").
	Network string `json:"network"`

	// Maximum amount required to pay for the resource in atomic units of
	// the asset. Represented as a string because Go does not support uint256.
	MaxAmountRequired string `json:"maxAmountRequired"`

	// URL of the resource to pay for.
	Resource string `json:"resource"`

	// Description of the resource being purchased.
	Description string `json:"description"`

	// Address to which the payment must be sent.
	PayTo string `json:"payTo"`

	// Maximum time in seconds for the resource server to respond.
	MaxTimeoutSeconds int `json:"maxTimeoutSeconds"`

	// Address of the EIP-3009 compliant ERC20 contract.
	Asset string `json:"asset"`

	// Extra information specific to the scheme. For "exact" on EVM this may
	// carry the token's EIP-712 domain "name" and "version".
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Validate checks that the requirements carry everything needed to build a
// payment authorization.
func (pr *PaymentRequirements) Validate() error {
	if pr.Scheme == "" {
		return fmt.Errorf("paymentRequirements.scheme is required")
	}

	if pr.Network == "" {
		return fmt.Errorf("paymentRequirements.network is required")
	}

	if pr.MaxAmountRequired == "" {
		return fmt.Errorf("paymentRequirements.maxAmountRequired is required")
	}

	if pr.PayTo == "" {
		return fmt.Errorf("paymentRequirements.payTo is required")
	}

	if pr.Asset == "" {
		return fmt.Errorf("paymentRequirements.asset is required")
	}

	return nil
}

// PaymentPayload is the envelope carried in the X-Payment header when a
// request is resubmitted after a 402 challenge.
type PaymentPayload struct {
	X402Version int    `json:"x402Version"`
	Scheme      string `json:"scheme"`
	Network     string `json:"network"`

	// Payload is a base64-encoded scheme-specific payload. For the "exact"
	// scheme on EVM it decodes to an ExactEVMPayload.
	Payload string `json:"payload"`
}

// ExactEVMPayload is the signed EIP-3009 authorization for the "exact"
// scheme on EVM networks.
type ExactEVMPayload struct {
	// Signature is the 65-byte ECDSA signature over the EIP-712 digest.
	Signature     string               `json:"signature"`
	Authorization EIP3009Authorization `json:"authorization"`
}

// EIP3009Authorization mirrors the TransferWithAuthorization message of
// EIP-3009 compliant tokens such as USDC.
type EIP3009Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`       // uint256
	ValidAfter  string `json:"validAfter"`  // uint256 timestamp
	ValidBefore string `json:"validBefore"` // uint256 timestamp
	Nonce       string `json:"nonce"`       // bytes32
}

// EIP712Domain defines the domain separator per EIP-712.
type EIP712Domain struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	ChainId           int64  `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
}

// Protocol constants.
const (
	X402Version = 1
	SchemeExact = "exact"
)

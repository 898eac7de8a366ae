package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// Config is the process-wide payment configuration. It is loaded once at
// startup and treated as immutable thereafter.
type Config struct {
	// ChainId identifies the EVM chain payments settle on.
	ChainId int64 `json:"chainId" validate:"required,gt=0"`

	// TokenAddress is the stable token used for tips (USDC on Base).
	TokenAddress string `json:"tokenAddress" validate:"required,eth_addr"`

	// TokenName and TokenVersion form the token's EIP-712 signing domain.
	TokenName    string `json:"tokenName" validate:"required"`
	TokenVersion string `json:"tokenVersion" validate:"required"`

	// TokenDecimals converts decimal amounts to atomic units.
	TokenDecimals int `json:"tokenDecimals" validate:"gte=0,lte=18"`

	// DefaultTipAmounts maps each interaction type to its default tip,
	// as decimal strings.
	DefaultTipAmounts map[InteractionType]string `json:"defaultTipAmounts" validate:"required"`

	// PaymentTimeout bounds every payment attempt end to end.
	PaymentTimeout time.Duration `json:"paymentTimeout" validate:"required"`

	// MaxPaymentAmount is the safety limit; requests above it are rejected
	// locally, before any network call.
	MaxPaymentAmount string `json:"maxPaymentAmount" validate:"required"`

	// BlockExplorerURL is the base URL transaction links are derived from.
	BlockExplorerURL string `json:"blockExplorerUrl" validate:"required,url"`

	// FacilitatorURL is the x402 facilitator endpoint.
	FacilitatorURL string `json:"facilitatorUrl" validate:"required,url"`

	// PaymentEndpoint is the base URL of the remote tipping endpoint.
	PaymentEndpoint string `json:"paymentEndpoint" validate:"required,url"`
}

// DefaultConfig returns the Base mainnet configuration used by the tipping
// app: USDC tips with per-interaction defaults and a 1 USDC safety cap.
func DefaultConfig() *Config {
	return &Config{
		ChainId:       8453,
		TokenAddress:  "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
		TokenName:     "USD Coin",
		TokenVersion:  "2",
		TokenDecimals: 6,
		DefaultTipAmounts: map[InteractionType]string{
			InteractionLike:    "0.01",
			InteractionRecast:  "0.02",
			InteractionComment: "0.05",
		},
		PaymentTimeout:   30 * time.Second,
		MaxPaymentAmount: "1.00",
		BlockExplorerURL: "https://basescan.org",
		FacilitatorURL:   "https://facilitator.x402.org",
		PaymentEndpoint:  "https://api.autotip.example.com",
	}
}

// Validate checks the configuration for structural problems and makes sure
// every monetary field parses as an exact decimal.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	max, err := decimal.NewFromString(c.MaxPaymentAmount)
	if err != nil {
		return fmt.Errorf("invalid maxPaymentAmount %q: %w", c.MaxPaymentAmount, err)
	}
	if !max.IsPositive() {
		return fmt.Errorf("maxPaymentAmount must be greater than 0")
	}

	for interaction, amount := range c.DefaultTipAmounts {
		if !interaction.IsValid() {
			return fmt.Errorf("unknown interaction type %q in defaultTipAmounts", interaction)
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return fmt.Errorf("invalid default amount for %s: %w", interaction, err)
		}
		if amt.GreaterThan(max) {
			return fmt.Errorf("default amount for %s exceeds maxPaymentAmount %s", interaction, c.MaxPaymentAmount)
		}
	}

	return nil
}

// DefaultAmount returns the configured default tip for an interaction type,
// or an empty string if none is configured.
func (c *Config) DefaultAmount(interaction InteractionType) string {
	return c.DefaultTipAmounts[interaction]
}

// Domain returns the EIP-712 signing domain of the configured token.
func (c *Config) Domain() EIP712Domain {
	return EIP712Domain{
		Name:              c.TokenName,
		Version:           c.TokenVersion,
		ChainId:           c.ChainId,
		VerifyingContract: c.TokenAddress,
	}
}

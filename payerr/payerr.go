// Package payerr maps raw payment failures into a closed taxonomy of error
// kinds with user-facing text and a recoverability flag.
package payerr

import (
	"context"
	"errors"
	"strings"
)

// Code identifies a payment error kind. The set is closed; callers can
// switch over it exhaustively.
type Code string

const (
	CodeWalletNotConnected Code = "WALLET_NOT_CONNECTED"
	CodeInsufficientFunds  Code = "INSUFFICIENT_FUNDS"
	CodeUserRejected       Code = "USER_REJECTED"
	CodeNetworkError       Code = "NETWORK_ERROR"
	CodePaymentTimeout     Code = "PAYMENT_TIMEOUT"
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeUnknown            Code = "UNKNOWN_ERROR"
)

// Error is a classified payment failure. It is derived, never persisted.
type Error struct {
	Code        Code   `json:"code"`
	Message     string `json:"message"`
	UserMessage string `json:"userMessage"`
	Recoverable bool   `json:"recoverable"`
}

func (e *Error) Error() string {
	return e.Message
}

// New builds a classified error with the canonical user message for code.
func New(code Code, message string) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		UserMessage: userMessages[code],
		Recoverable: code != CodeInvalidAmount,
	}
}

var userMessages = map[Code]string{
	CodeWalletNotConnected: "Please connect your wallet to make payments.",
	CodeInsufficientFunds:  "You don't have enough USDC to complete this payment.",
	CodeUserRejected:       "Payment was cancelled. You can try again anytime.",
	CodeNetworkError:       "Network error occurred. Please check your connection and try again.",
	CodePaymentTimeout:     "Payment timed out. Please try again.",
	CodeInvalidAmount:      "Invalid payment amount. Please check the configuration.",
	CodeServiceUnavailable: "Payment service is temporarily unavailable. Please try again later.",
	CodeUnknown:            "An unexpected error occurred. Please try again.",
}

// statusCarrier is implemented by transport errors that retain the final
// HTTP status of a failed call.
type statusCarrier interface {
	HTTPStatus() int
}

// Classify maps a raw failure into the closed taxonomy. It applies an
// ordered set of predicates against the error's text and HTTP status; the
// first match wins. Classify is pure: the same input always yields the same
// Error, and an already classified error passes through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return New(CodeWalletNotConnected, "wallet not connected")
	}

	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	status := 0
	var sc statusCarrier
	if errors.As(err, &sc) {
		status = sc.HTTPStatus()
	}

	switch {
	case strings.Contains(lower, "wallet") || strings.Contains(lower, "connect"):
		return New(CodeWalletNotConnected, msg)

	case strings.Contains(lower, "insufficient"):
		return New(CodeInsufficientFunds, msg)

	case strings.Contains(lower, "rejected") || strings.Contains(lower, "denied"):
		return New(CodeUserRejected, msg)

	case strings.Contains(lower, "network") || strings.Contains(lower, "connection"):
		return New(CodeNetworkError, msg)

	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return New(CodePaymentTimeout, msg)

	case strings.Contains(lower, "amount") || strings.Contains(lower, "invalid"):
		return New(CodeInvalidAmount, msg)

	case status >= 500 || strings.Contains(lower, "service"):
		return New(CodeServiceUnavailable, msg)

	default:
		return New(CodeUnknown, msg)
	}
}

// RecoveryAction returns the call-to-action label the UI renders next to a
// classified error.
func RecoveryAction(code Code) string {
	switch code {
	case CodeWalletNotConnected:
		return "Connect Wallet"
	case CodeInsufficientFunds:
		return "Add USDC"
	case CodeNetworkError, CodePaymentTimeout:
		return "Retry"
	case CodeServiceUnavailable:
		return "Retry Later"
	default:
		return "Try Again"
	}
}

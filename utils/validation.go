package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var hexPattern = regexp.MustCompile("^[0-9a-fA-F]+$")

// ValidateAddress checks that a string is a valid EVM address.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid EVM address: %s", address)
	}

	return nil
}

// ValidateTransactionHash checks that a string looks like an EVM
// transaction hash (0x followed by 64 hex characters).
func ValidateTransactionHash(hash string) error {
	if hash == "" {
		return fmt.Errorf("transaction hash cannot be empty")
	}

	if !strings.HasPrefix(hash, "0x") {
		return fmt.Errorf("transaction hash must start with 0x")
	}

	if len(hash) != 66 {
		return fmt.Errorf("transaction hash must be 66 characters long")
	}

	if !hexPattern.MatchString(hash[2:]) {
		return fmt.Errorf("transaction hash must be valid hex")
	}

	return nil
}

// RandomNonce returns a random 32-byte value as a 0x-prefixed hex string,
// used as the EIP-3009 authorization nonce.
func RandomNonce() (string, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	return "0x" + hex.EncodeToString(nonce[:]), nil
}

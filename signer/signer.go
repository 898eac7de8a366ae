// Package signer provides the wallet capability that authorizes a bounded
// transfer on behalf of a user. The transport snapshots a Signer at call
// start and uses it for the duration of the call.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/autotip/tipcore/types"
)

// Signer authorizes a transfer by producing an EIP-712 signature over an
// EIP-3009 TransferWithAuthorization message.
type Signer interface {
	// Address is the account the authorization draws funds from.
	Address() common.Address

	// SignTransferAuthorization signs the typed-data digest of auth under
	// the token's signing domain and returns a 0x-prefixed 65-byte
	// signature with v in {27, 28}.
	SignTransferAuthorization(ctx context.Context, domain types.EIP712Domain, auth types.EIP3009Authorization) (string, error)
}

var _ Signer = (*LocalSigner)(nil)

// LocalSigner signs with an in-process secp256k1 private key.
type LocalSigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewLocalSigner creates a signer from a hex-encoded private key.
func NewLocalSigner(hexKey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &LocalSigner{
		key:  key,
		addr: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address implements Signer.
func (s *LocalSigner) Address() common.Address {
	return s.addr
}

// SignTransferAuthorization implements Signer.
func (s *LocalSigner) SignTransferAuthorization(ctx context.Context, domain types.EIP712Domain, auth types.EIP3009Authorization) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	digest, err := TransferAuthorizationDigest(domain, auth)
	if err != nil {
		return "", err
	}

	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign authorization: %w", err)
	}

	// Normalize v from 0/1 to 27/28 as wallets do.
	if sig[64] < 27 {
		sig[64] += 27
	}

	return hexutil.Encode(sig), nil
}

// TransferAuthorizationDigest computes the EIP-712 digest of an EIP-3009
// TransferWithAuthorization message under the given domain.
func TransferAuthorizationDigest(domain types.EIP712Domain, auth types.EIP3009Authorization) ([]byte, error) {
	td := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": {
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           math.NewHexOrDecimal256(domain.ChainId),
			VerifyingContract: domain.VerifyingContract,
		},
		Message: apitypes.TypedDataMessage{
			"from":        auth.From,
			"to":          auth.To,
			"value":       auth.Value,
			"validAfter":  auth.ValidAfter,
			"validBefore": auth.ValidBefore,
			"nonce":       auth.Nonce,
		},
	}

	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}

	return digest, nil
}

// RecoverAuthorizationSigner recovers the address that signed an EIP-3009
// authorization. Both 0/1 and 27/28 recovery id conventions are accepted.
func RecoverAuthorizationSigner(domain types.EIP712Domain, auth types.EIP3009Authorization, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("bad signature hex: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}

	digest, err := TransferAuthorizationDigest(domain, auth)
	if err != nil {
		return common.Address{}, err
	}

	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// ValueWithinLimit reports whether an authorization value in atomic units is
// at or under the given limit.
func ValueWithinLimit(value string, limit *big.Int) bool {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return false
	}
	return v.Cmp(limit) <= 0
}

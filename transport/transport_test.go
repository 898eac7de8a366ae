package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autotip/tipcore/logger"
	"github.com/autotip/tipcore/payerr"
	"github.com/autotip/tipcore/signer"
	"github.com/autotip/tipcore/types"
)

const (
	testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testHash       = "0xabc0000000000000000000000000000000000000000000000000000000000def"
)

func testConfig(endpoint string) *types.Config {
	cfg := types.DefaultConfig()
	cfg.PaymentEndpoint = endpoint
	cfg.PaymentTimeout = 5 * time.Second
	return cfg
}

func testSigner(t *testing.T) *signer.LocalSigner {
	t.Helper()
	sgn, err := signer.NewLocalSigner(testPrivateKey)
	require.NoError(t, err)
	return sgn
}

func testPayload() *types.TipPayload {
	return &types.TipPayload{
		Amount:          "0.01",
		TokenAddress:    "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
		Recipient:       "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		InteractionType: types.InteractionLike,
		PostId:          "p1",
	}
}

func testRequirements() types.PaymentRequirements {
	return types.PaymentRequirements{
		Scheme:            types.SchemeExact,
		Network:           "base",
		MaxAmountRequired: "10000",
		PayTo:             "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Asset:             "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
		MaxTimeoutSeconds: 60,
	}
}

func encodeRequirements(t *testing.T, reqs types.PaymentRequirements) string {
	t.Helper()
	data, err := json.Marshal(reqs)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}

func decodePaymentHeader(t *testing.T, header string) (*types.PaymentPayload, *types.ExactEVMPayload) {
	t.Helper()

	raw, err := base64.StdEncoding.DecodeString(header)
	require.NoError(t, err)

	var envelope types.PaymentPayload
	require.NoError(t, json.Unmarshal(raw, &envelope))

	inner, err := base64.StdEncoding.DecodeString(envelope.Payload)
	require.NoError(t, err)

	var payload types.ExactEVMPayload
	require.NoError(t, json.Unmarshal(inner, &payload))

	return &envelope, &payload
}

func TestSubmit_HashInBody(t *testing.T) {
	var gotBody types.TipPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"success":         true,
			"transactionHash": testHash,
		})
	}))
	defer srv.Close()

	tr := New(testConfig(srv.URL), logger.NoopLogger{})

	hash, err := tr.Submit(context.Background(), srv.URL+"/tip/p1/like", testPayload(), testSigner(t))
	require.NoError(t, err)
	assert.Equal(t, testHash, hash)
	assert.Equal(t, "0.01", gotBody.Amount)
	assert.Equal(t, types.InteractionLike, gotBody.InteractionType)
}

func TestSubmit_HashInHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderTransactionHash, testHash)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := New(testConfig(srv.URL), logger.NoopLogger{})

	hash, err := tr.Submit(context.Background(), srv.URL, testPayload(), testSigner(t))
	require.NoError(t, err)
	assert.Equal(t, testHash, hash)
}

func TestSubmit_SuccessWithoutHash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	tr := New(testConfig(srv.URL), logger.NoopLogger{})

	hash, err := tr.Submit(context.Background(), srv.URL, testPayload(), testSigner(t))
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestSubmit_PaymentRequiredFlow(t *testing.T) {
	sgn := testSigner(t)
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		header := r.Header.Get(HeaderPayment)
		if header == "" {
			w.Header().Set(HeaderPaymentRequirements, encodeRequirements(t, testRequirements()))
			w.WriteHeader(http.StatusPaymentRequired)
			return
		}

		envelope, payload := decodePaymentHeader(t, header)
		assert.Equal(t, types.X402Version, envelope.X402Version)
		assert.Equal(t, types.SchemeExact, envelope.Scheme)
		assert.Equal(t, "base", envelope.Network)

		auth := payload.Authorization
		assert.Equal(t, sgn.Address().Hex(), auth.From)
		assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", auth.To)
		assert.Equal(t, "10000", auth.Value)

		domain := types.EIP712Domain{
			Name:              "USD Coin",
			Version:           "2",
			ChainId:           8453,
			VerifyingContract: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
		}
		recovered, err := signer.RecoverAuthorizationSigner(domain, auth, payload.Signature)
		require.NoError(t, err)
		assert.Equal(t, sgn.Address(), recovered)

		json.NewEncoder(w).Encode(map[string]any{
			"success":         true,
			"transactionHash": testHash,
		})
	}))
	defer srv.Close()

	tr := New(testConfig(srv.URL), logger.NoopLogger{})

	hash, err := tr.Submit(context.Background(), srv.URL, testPayload(), sgn)
	require.NoError(t, err)
	assert.Equal(t, testHash, hash)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSubmit_PaymentRequiredFromBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderPayment) == "" {
			w.WriteHeader(http.StatusPaymentRequired)
			json.NewEncoder(w).Encode(map[string]any{
				"x402Version": 1,
				"accepts":     []types.PaymentRequirements{testRequirements()},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"transactionHash": testHash})
	}))
	defer srv.Close()

	tr := New(testConfig(srv.URL), logger.NoopLogger{})

	hash, err := tr.Submit(context.Background(), srv.URL, testPayload(), testSigner(t))
	require.NoError(t, err)
	assert.Equal(t, testHash, hash)
}

func TestSubmit_PaymentRequiredWithoutSigner(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set(HeaderPaymentRequirements, encodeRequirements(t, testRequirements()))
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	tr := New(testConfig(srv.URL), logger.NoopLogger{})

	_, err := tr.Submit(context.Background(), srv.URL, testPayload(), nil)
	require.Error(t, err)

	perr := payerr.Classify(err)
	assert.Equal(t, payerr.CodeWalletNotConnected, perr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubmit_PaymentRequiredResubmitsOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// Refuse the payment even after an authorization is attached.
		w.Header().Set(HeaderPaymentRequirements, encodeRequirements(t, testRequirements()))
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	tr := New(testConfig(srv.URL), logger.NoopLogger{})

	_, err := tr.Submit(context.Background(), srv.URL, testPayload(), testSigner(t))
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusPaymentRequired, serr.HTTPStatus())
}

func TestSubmit_PaymentRequiredWithoutRequirements(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	tr := New(testConfig(srv.URL), logger.NoopLogger{})

	_, err := tr.Submit(context.Background(), srv.URL, testPayload(), testSigner(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no payment requirements")
}

func TestSubmit_RefusesOverLimitAuthorization(t *testing.T) {
	reqs := testRequirements()
	reqs.MaxAmountRequired = "2000000" // 2.00 USDC, above the 1.00 cap

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set(HeaderPaymentRequirements, encodeRequirements(t, reqs))
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	tr := New(testConfig(srv.URL), logger.NoopLogger{})

	_, err := tr.Submit(context.Background(), srv.URL, testPayload(), testSigner(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum allowed")
	// The signer was never asked and no resubmission happened.
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubmit_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.PaymentTimeout = 50 * time.Millisecond
	tr := New(cfg, logger.NoopLogger{})

	_, err := tr.Submit(context.Background(), srv.URL, testPayload(), testSigner(t))
	require.Error(t, err)

	perr := payerr.Classify(err)
	assert.Equal(t, payerr.CodePaymentTimeout, perr.Code)
	assert.True(t, perr.Recoverable)
}

func TestSubmit_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := New(testConfig(srv.URL), logger.NoopLogger{})

	_, err := tr.Submit(context.Background(), srv.URL, testPayload(), testSigner(t))
	require.Error(t, err)

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusInternalServerError, serr.HTTPStatus())
	assert.Equal(t, payerr.CodeServiceUnavailable, payerr.Classify(err).Code)
}

func TestSubmit_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	tr := New(testConfig(srv.URL), logger.NoopLogger{})

	_, err := tr.Submit(context.Background(), srv.URL, testPayload(), testSigner(t))
	require.Error(t, err)
}

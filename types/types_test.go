package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *PaymentRequest {
	return &PaymentRequest{
		Amount:          "0.01",
		TokenAddress:    "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
		Recipient:       "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		InteractionType: InteractionLike,
		PostId:          "p1",
	}
}

func TestPaymentRequest_Validate(t *testing.T) {
	require.NoError(t, validRequest().Validate())
}

func TestPaymentRequest_Validate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PaymentRequest)
	}{
		{"empty amount", func(r *PaymentRequest) { r.Amount = "" }},
		{"garbage amount", func(r *PaymentRequest) { r.Amount = "abc" }},
		{"zero amount", func(r *PaymentRequest) { r.Amount = "0" }},
		{"negative amount", func(r *PaymentRequest) { r.Amount = "-0.01" }},
		{"unknown interaction", func(r *PaymentRequest) { r.InteractionType = "boost" }},
		{"missing post", func(r *PaymentRequest) { r.PostId = "" }},
		{"missing recipient", func(r *PaymentRequest) { r.Recipient = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(req)
			assert.Error(t, req.Validate())
		})
	}
}

func TestInteractionType_IsValid(t *testing.T) {
	assert.True(t, InteractionLike.IsValid())
	assert.True(t, InteractionRecast.IsValid())
	assert.True(t, InteractionComment.IsValid())
	assert.False(t, InteractionType("boost").IsValid())
	assert.False(t, InteractionType("").IsValid())
}

func TestPaymentRequirements_Validate(t *testing.T) {
	reqs := PaymentRequirements{
		Scheme:            SchemeExact,
		Network:           "base",
		MaxAmountRequired: "10000",
		PayTo:             "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		Asset:             "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
	}
	require.NoError(t, reqs.Validate())

	missing := reqs
	missing.PayTo = ""
	assert.Error(t, missing.Validate())

	missing = reqs
	missing.Asset = ""
	assert.Error(t, missing.Validate())

	missing = reqs
	missing.MaxAmountRequired = ""
	assert.Error(t, missing.Validate())
}

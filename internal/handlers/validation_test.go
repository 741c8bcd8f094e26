package handlers

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMoney(t *testing.T) {
	v := validator.New()
	require.NoError(t, v.RegisterValidation("money", validateMoney))

	type amount struct {
		Value float64 `validate:"money"`
	}

	tests := []struct {
		value float64
		valid bool
	}{
		{0, true},
		{100, true},
		{199.99, true},
		{0.1, true},
		{1234567.89, true},
		{10.005, false},
		{0.001, false},
		{-1, false},
	}

	for _, tt := range tests {
		err := v.Struct(amount{Value: tt.value})
		if tt.valid {
			assert.NoError(t, err, "%v should be accepted", tt.value)
		} else {
			assert.Error(t, err, "%v should be rejected", tt.value)
		}
	}
}

func TestValidateMoney_WrongKind(t *testing.T) {
	v := validator.New()
	require.NoError(t, v.RegisterValidation("money", validateMoney))

	type text struct {
		Value string `validate:"money"`
	}
	assert.Error(t, v.Struct(text{Value: "10.00"}))
}

func TestRegisterValidators_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		RegisterValidators()
		RegisterValidators()
	})
}

package validator

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addItemBody struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

func TestValidate_FieldsUseJSONNames(t *testing.T) {
	err := Validate(&addItemBody{ProductID: "nope", Quantity: 0})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	fields := verr.Fields()
	assert.Equal(t, "must be a valid UUID", fields["product_id"])
	assert.Equal(t, "must be greater than or equal to 1", fields["quantity"])
	assert.Contains(t, verr.Error(), "field 'quantity'")
}

func TestValidate_OK(t *testing.T) {
	require.NoError(t, Validate(&addItemBody{ProductID: "7b0c8d6e-8c5a-4d0e-9a37-0d7c2b3f5a11", Quantity: 2}))
}

func TestDecodeStrict(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantDecode bool
		wantValid  bool
	}{
		{"valid", `{"product_id":"7b0c8d6e-8c5a-4d0e-9a37-0d7c2b3f5a11","quantity":1}`, false, false},
		{"unknown field", `{"product_id":"7b0c8d6e-8c5a-4d0e-9a37-0d7c2b3f5a11","quantity":1,"price":"0.01"}`, true, false},
		{"malformed", `{"product_id":`, true, false},
		{"empty", ``, true, false},
		{"trailing document", `{"product_id":"7b0c8d6e-8c5a-4d0e-9a37-0d7c2b3f5a11","quantity":1}{}`, true, false},
		{"wrong type", `{"product_id":"7b0c8d6e-8c5a-4d0e-9a37-0d7c2b3f5a11","quantity":"1"}`, true, false},
		{"fails validation", `{"product_id":"7b0c8d6e-8c5a-4d0e-9a37-0d7c2b3f5a11","quantity":0}`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/v1/cart/items", strings.NewReader(tt.body))
			var dst addItemBody
			err := DecodeStrict(r, &dst)

			var derr *DecodeError
			var verr *ValidationError
			assert.Equal(t, tt.wantDecode, errors.As(err, &derr))
			assert.Equal(t, tt.wantValid, errors.As(err, &verr))
			if !tt.wantDecode && !tt.wantValid {
				require.NoError(t, err)
			}
		})
	}
}

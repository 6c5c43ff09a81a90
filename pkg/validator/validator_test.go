package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type joinRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Name   string `json:"name" validate:"required,max=32"`
	Color  string `json:"color" validate:"required,hexcolor"`
}

func TestValidator(t *testing.T) {
	v := NewValidator()

	errs, ok := v.Validate(joinRequest{UserID: "u1", Name: "Ada", Color: "#ff00aa"})
	assert.True(t, ok)
	assert.Empty(t, errs)

	errs, ok = v.Validate(joinRequest{Name: "Ada", Color: "pink"})
	require.False(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, ValidationError{Field: "user_id", Code: "REQUIRED", Message: "user_id is required"}, errs[0])
	assert.Equal(t, ValidationError{Field: "color", Code: "HEXCOLOR", Message: "color must be a hex color"}, errs[1])
}

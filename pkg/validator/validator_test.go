package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required,min=2"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"oneof=admin user externo"`
}

func TestValidate(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&sample{Name: "Ana", Email: "ana@medcol.com", Role: "user"}))

	err := v.Validate(&sample{Name: "A", Email: "nope", Role: "root"})
	require.Error(t, err)

	errs, ok := err.(Errors)
	require.True(t, ok)
	require.Len(t, errs, 3)
	assert.Equal(t, "name", errs[0].Field)
	assert.Equal(t, "email", errs[1].Field)
	assert.Equal(t, "must be a valid email", errs[1].Message)
	assert.Equal(t, "role", errs[2].Field)
}

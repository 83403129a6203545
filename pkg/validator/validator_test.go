package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ruleForm struct {
	Name       string   `validate:"required"`
	Condition  string   `validate:"required,ccl"`
	Conditions []string `validate:"min=1"`
}

func TestStructValid(t *testing.T) {
	v := New()
	err := v.Struct(ruleForm{
		Name:       "volumes-encrypted",
		Condition:  "Volume has encrypted == true",
		Conditions: []string{"x"},
	})
	assert.NoError(t, err)
}

func TestStructReportsFieldErrors(t *testing.T) {
	v := New()
	err := v.Struct(ruleForm{
		Condition:  "Volume has encrypted ==",
		Conditions: []string{},
	})
	require.Error(t, err)

	verrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, verrs, 3)

	byField := map[string]string{}
	for _, e := range verrs {
		byField[e.Field] = e.Message
	}
	assert.Equal(t, "is required", byField["Name"])
	assert.Equal(t, "is not a valid condition", byField["Condition"])
	assert.Equal(t, "must have at least 1 items", byField["Conditions"])
}

func TestValidationErrorsString(t *testing.T) {
	errs := ValidationErrors{
		{Field: "Name", Message: "is required"},
		{Field: "Condition", Message: "is not a valid condition"},
	}
	assert.Equal(t, "Name: is required; Condition: is not a valid condition", errs.Error())
	assert.Empty(t, ValidationErrors{}.Error())
}

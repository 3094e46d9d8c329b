package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devlink/apiserver/internal/apperr"
)

type signup struct {
	Name     string `json:"name" validate:"notblank" msg:"Name is required"`
	Email    string `json:"email" validate:"required,email" msg:"Please include a valid email"`
	Password string `json:"password" validate:"min=6" msg:"Please enter a password with 6 or more characters"`
}

type optionalFields struct {
	Status *string `json:"status" validate:"omitnil,notblank" msg:"Status is required"`
	From   string  `json:"from" validate:"notblank,date" msg:"From date is required"`
	To     string  `json:"to" validate:"date"`
}

func TestStructCollectsEveryViolation(t *testing.T) {
	err := Struct(signup{Name: "  ", Email: "nope", Password: "123"})
	require.Error(t, err)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindValidation, appErr.Kind)
	assert.Equal(t, []apperr.FieldError{
		{Field: "name", Message: "Name is required"},
		{Field: "email", Message: "Please include a valid email"},
		{Field: "password", Message: "Please enter a password with 6 or more characters"},
	}, appErr.Fields)
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(&signup{Name: "Ada", Email: "a@x.com", Password: "123456"}))
}

func TestOptionalPointerAndDates(t *testing.T) {
	assert.NoError(t, Struct(optionalFields{From: "2020-01-02"}))

	blank := " "
	err := Struct(optionalFields{Status: &blank, From: "yesterday", To: "2021-13-40"})
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	require.Len(t, appErr.Fields, 3)
	assert.Equal(t, "status", appErr.Fields[0].Field)
	assert.Equal(t, "From date is required", appErr.Fields[1].Message)
	assert.Equal(t, "to is invalid", appErr.Fields[2].Message)
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2019-06-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = ParseDate("2019-06-01T10:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 6, 1, 8, 0, 0, 0, time.UTC), got)

	_, err = ParseDate("June 1st")
	assert.Error(t, err)
}

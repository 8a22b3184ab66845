package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_HTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeNotFound:             http.StatusNotFound,
		ErrCodeForbidden:            http.StatusForbidden,
		ErrCodeInvalidState:         http.StatusConflict,
		ErrCodeDuplicateEntity:      http.StatusConflict,
		ErrCodeAlreadyResolved:      http.StatusConflict,
		ErrCodeInsufficientBalance:  http.StatusBadRequest,
		ErrCodeInvalidPaymentAmount: http.StatusUnprocessableEntity,
		ErrCodeInternal:             http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, New(code, "x").HTTPStatus, code)
	}
}

func TestAppError_WithDetailsKeepsIdentity(t *testing.T) {
	err := ErrSkillNotVerified.WithDetails(map[string]any{"skillId": "abc"})

	assert.True(t, errors.Is(err, ErrSkillNotVerified))
	assert.Equal(t, "abc", err.Details["skillId"])
	assert.Nil(t, ErrSkillNotVerified.Details)
}

func TestAppError_WrapAndCode(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("ctx: %w", Wrap(cause, ErrCodeInternal, "сбой"))

	assert.Equal(t, ErrCodeInternal, CodeOf(err))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("plain")))
	assert.True(t, IsNotFound(ErrJobNotFound))
	assert.False(t, IsNotFound(ErrForbidden))
}

package auth_test

import (
	"errors"
	"net/http"
	"testing"

	auth "github.com/autoresum/autoresum-go"
	"github.com/stretchr/testify/assert"
)

func TestNewValidationError(t *testing.T) {
	err := auth.NewValidationError(map[string]string{"email": "invalid email address"})

	assert.True(t, auth.IsValidationError(err))
	assert.Equal(t, http.StatusUnprocessableEntity, auth.ErrorStatus(err))
	assert.Equal(t, "invalid email address", auth.ValidationFields(err)["email"])
}

func TestNewServerErrorCategories(t *testing.T) {
	tests := []struct {
		status int
		check  func(error) bool
	}{
		{http.StatusUnauthorized, auth.IsAuthenticationError},
		{http.StatusForbidden, auth.IsAuthorizationError},
		{http.StatusPaymentRequired, auth.IsAuthorizationError},
		{http.StatusBadRequest, auth.IsValidationError},
		{http.StatusUnprocessableEntity, auth.IsValidationError},
	}

	for _, tc := range tests {
		err := auth.NewServerError(tc.status, "", nil, nil)
		assert.True(t, tc.check(err), "status %d", tc.status)
		assert.Equal(t, tc.status, auth.ErrorStatus(err))
	}
}

func TestNewServerErrorDefaultMessage(t *testing.T) {
	err := auth.NewServerError(http.StatusBadGateway, "", nil, nil)
	assert.Contains(t, err.Error(), http.StatusText(http.StatusBadGateway))
}

func TestTransientErrorClassification(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := auth.NewTransientError(cause, "request timed out")

	assert.True(t, auth.IsTransientError(err))
	assert.False(t, auth.IsAuthenticationError(err))
	assert.ErrorIs(t, err, cause)
}

func TestProtocolErrors(t *testing.T) {
	assert.True(t, auth.IsProtocolError(auth.ErrNoToken))
	assert.True(t, auth.IsProtocolError(auth.ErrNoRefreshToken))
	assert.False(t, auth.IsProtocolError(auth.ErrSessionExpired))
	assert.False(t, auth.IsProtocolError(errors.New("plain")))
}

func TestClassifiersRejectPlainErrors(t *testing.T) {
	plain := errors.New("plain")
	assert.False(t, auth.IsValidationError(plain))
	assert.False(t, auth.IsTransientError(plain))
	assert.Nil(t, auth.ValidationFields(plain))
	assert.Zero(t, auth.ErrorStatus(plain))
}

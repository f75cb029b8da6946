package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateValidate(t *testing.T) {
	svc := NewJWTService("test-secret", 1)
	userID := uuid.New()

	token, err := svc.Generate(userID, "host@example.com", "organizer")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "host@example.com", claims.Email)
	assert.Equal(t, "organizer", claims.Role)
}

func TestValidate_WrongSecret(t *testing.T) {
	token, err := NewJWTService("secret-a", 1).Generate(uuid.New(), "a@example.com", "attendee")
	require.NoError(t, err)

	_, err = NewJWTService("secret-b", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_Garbage(t *testing.T) {
	_, err := NewJWTService("secret", 1).Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

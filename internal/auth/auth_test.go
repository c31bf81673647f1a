package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		actor, required string
		want            bool
	}{
		{RoleStudent, RoleStudent, true},
		{RoleStudent, RoleStaff, false},
		{RoleFaculty, RoleStaff, true},
		{RoleStaff, RoleFaculty, true},
		{RoleStaff, RoleAdmin, false},
		{RoleAdmin, RoleStaff, true},
		{"ADMIN", RoleAdmin, true},
		{"superuser", RoleStudent, false},
		{"", RoleStudent, false},
		{RoleAdmin, "moderator", true},
		{"superuser", "", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Allowed(tt.actor, tt.required), "%s -> %s", tt.actor, tt.required)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	token, expires, err := m.Generate("user-1", RoleStaff)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, RoleStaff, claims.Role)
}

func TestTokenRejections(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	token, _, err := m.Generate("user-1", RoleStudent)
	require.NoError(t, err)

	other := NewTokenManager("other-secret", time.Hour)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenManager("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.Generate("user-1", RoleStudent)
	require.NoError(t, err)
	_, err = m.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.Parse("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "hunter22"))
	assert.False(t, CheckPassword(hash, "hunter23"))
}

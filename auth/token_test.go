package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quorum/common"
	"quorum/models"
)

func TestIssueAndVerify(t *testing.T) {
	tokens := NewTokenService("secret", time.Hour)

	raw, err := tokens.Issue("5", models.RoleUser)
	assert.NoError(t, err)
	assert.NotEmpty(t, raw)

	claims, err := tokens.Verify(raw)
	assert.NoError(t, err)
	assert.Equal(t, "5", claims.Subject)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestVerify_WrongSecret(t *testing.T) {
	tokens := NewTokenService("secret", time.Hour)
	other := NewTokenService("another-secret", time.Hour)

	raw, err := tokens.Issue("5", models.RoleUser)
	assert.NoError(t, err)

	_, err = other.Verify(raw)
	assert.Error(t, err)
	assert.Equal(t, common.KindUnauthorized, common.KindOf(err))
}

func TestVerify_Expired(t *testing.T) {
	tokens := NewTokenService("secret", -time.Minute)

	raw, err := tokens.Issue("5", models.RoleUser)
	assert.NoError(t, err)

	_, err = tokens.Verify(raw)
	assert.Error(t, err)
	assert.Equal(t, common.KindUnauthorized, common.KindOf(err))
}

func TestDecodeUnverified(t *testing.T) {
	tokens := NewTokenService("secret", time.Hour)
	other := NewTokenService("another-secret", time.Hour)

	raw, err := tokens.Issue("7", models.RoleModerator)
	assert.NoError(t, err)

	// decodes even with the wrong verification key
	claims, err := other.DecodeUnverified(raw)
	assert.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, models.RoleModerator, claims.Role)
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
		wantErr  bool
	}{
		{"with scheme", "Bearer abc123", "abc123", false},
		{"without scheme", "abc123", "abc123", false},
		{"extra whitespace", "Bearer   abc123", "abc123", false},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ExtractBearer(tt.header)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, token)
		})
	}
}

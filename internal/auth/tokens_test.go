package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestTokens_IssueAndVerify(t *testing.T) {
	tokens := NewTokens(testSecret, "postapp-api", "postapp-client", time.Hour)

	signed, err := tokens.Issue(42, "alice")
	require.NoError(t, err)

	id, err := tokens.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id.UserID)
	assert.Equal(t, "alice", id.Username)
	assert.NotEmpty(t, id.TokenID)
}

func TestTokens_Verify_Rejects(t *testing.T) {
	tokens := NewTokens(testSecret, "postapp-api", "postapp-client", time.Hour)

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": "7",
			"iss": "postapp-api",
			"aud": "postapp-client",
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"empty", ""},
		{"wrong secret", sign(valid(), "another-secret")},
		{"expired", func() string {
			c := valid()
			c["exp"] = time.Now().Add(-time.Minute).Unix()
			return sign(c, testSecret)
		}()},
		{"no expiry", func() string {
			c := valid()
			delete(c, "exp")
			return sign(c, testSecret)
		}()},
		{"wrong issuer", func() string {
			c := valid()
			c["iss"] = "someone-else"
			return sign(c, testSecret)
		}()},
		{"wrong audience", func() string {
			c := valid()
			c["aud"] = "other-client"
			return sign(c, testSecret)
		}()},
		{"numeric subject", func() string {
			c := valid()
			c["sub"] = 7
			return sign(c, testSecret)
		}()},
		{"zero subject", func() string {
			c := valid()
			c["sub"] = "0"
			return sign(c, testSecret)
		}()},
		{"none algorithm", func() string {
			s, err := jwt.NewWithClaims(jwt.SigningMethodNone, valid()).SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tokens.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokens_MissingSecret(t *testing.T) {
	tokens := NewTokens("", "", "", time.Hour)
	_, err := tokens.Issue(1, "bob")
	assert.ErrorIs(t, err, ErrMissingSecret)
	_, err = tokens.Verify("x")
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestTokens_ExpiryWindow(t *testing.T) {
	tokens := NewTokens(testSecret, "postapp-api", "postapp-client", 7*24*time.Hour)
	issuedAt := time.Now()
	tokens.now = func() time.Time { return issuedAt }

	signed, err := tokens.Issue(1, "bob")
	require.NoError(t, err)

	tokens.now = func() time.Time { return issuedAt.Add(6 * 24 * time.Hour) }
	_, err = tokens.Verify(signed)
	assert.NoError(t, err)

	tokens.now = func() time.Time { return issuedAt.Add(8 * 24 * time.Hour) }
	_, err = tokens.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))
	assert.True(t, CheckPassword(hash, "secret1"))
	assert.False(t, CheckPassword(hash, "secret2"))
}

package jwt

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret_key_1234567890"

func TestJWTMaker_IssueAndParse_RoundTrip(t *testing.T) {
	maker := NewJWTMaker(testSecret, 15*time.Minute)

	tests := []struct {
		name    string
		subject string
		role    string
		ttl     time.Duration
	}{
		{name: "regular user", subject: "a@x.com", role: "USER", ttl: time.Minute},
		{name: "admin user", subject: "root@x.com", role: "ADMIN", ttl: time.Hour},
		{name: "unicode subject", subject: "пользователь@пример.рф", role: "USER", ttl: 24 * time.Hour},
		{name: "no role claim", subject: "b@x.com", role: "", ttl: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.Issue(tt.subject, tt.role, tt.ttl)
			require.NoError(t, err)
			assert.Len(t, strings.Split(token, "."), 3)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.subject, claims.Subject)
			assert.Equal(t, tt.role, claims.Role)
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second)
			assert.WithinDuration(t, time.Now().Add(tt.ttl), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestJWTMaker_GenerateTokenUsesConfiguredTTL(t *testing.T) {
	maker := NewJWTMaker(testSecret, 2*time.Hour)
	token, err := maker.GenerateToken("a@x.com", "USER")
	require.NoError(t, err)

	claims, err := maker.ParseToken(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), claims.ExpiresAt.Time, time.Second)
	assert.Equal(t, 2*time.Hour, maker.TTL())
}

func TestJWTMaker_Deterministic(t *testing.T) {
	fixed := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	maker := NewJWTMaker(testSecret, time.Hour, WithClock(func() time.Time { return fixed }))

	first, err := maker.Issue("a@x.com", "USER", time.Hour)
	require.NoError(t, err)
	second, err := maker.Issue("a@x.com", "USER", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestJWTMaker_ParseToken_InvalidTokens(t *testing.T) {
	maker := NewJWTMaker(testSecret, 15*time.Minute)

	validToken, err := maker.GenerateToken("testuser", "USER")
	require.NoError(t, err)

	expired, err := maker.Issue("testuser", "USER", -time.Second)
	require.NoError(t, err)

	foreign, err := NewJWTMaker("wrong_secret_key", time.Minute).GenerateToken("testuser", "USER")
	require.NoError(t, err)

	noSubject, err := maker.Issue("", "USER", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "two segments", token: "abc.def"},
		{name: "expired token", token: expired},
		{name: "wrong secret key", token: foreign},
		{name: "appended garbage", token: validToken + "tampered"},
		{name: "flipped signature bit", token: flipSignatureBit(t, validToken, 0)},
		{name: "empty subject", token: noSubject},
		{name: "alg none", token: unsignedToken(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidToken))
			assert.Nil(t, claims)
		})
	}
}

func TestJWTMaker_EveryFlippedSignatureBitIsRejected(t *testing.T) {
	maker := NewJWTMaker(testSecret, time.Minute)
	token, err := maker.GenerateToken("a@x.com", "USER")
	require.NoError(t, err)

	sig := strings.Split(token, ".")[2]
	raw, err := base64.RawURLEncoding.DecodeString(sig)
	require.NoError(t, err)

	for bit := 0; bit < len(raw)*8; bit++ {
		_, err := maker.ParseToken(flipSignatureBit(t, token, bit))
		require.ErrorIs(t, err, ErrInvalidToken, "bit %d", bit)
	}
}

func TestJWTMaker_ExpiryUsesVerificationClock(t *testing.T) {
	issuedAt := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	current := issuedAt
	maker := NewJWTMaker(testSecret, time.Minute, WithClock(func() time.Time { return current }))

	token, err := maker.GenerateToken("a@x.com", "USER")
	require.NoError(t, err)

	current = issuedAt.Add(59 * time.Second)
	_, err = maker.ParseToken(token)
	require.NoError(t, err)

	current = issuedAt.Add(time.Minute)
	_, err = maker.ParseToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.Contains(t, err.Error(), "expired")
}

func TestJWTMaker_DifferentSecretKeys(t *testing.T) {
	maker1 := NewJWTMaker("first_secret_key", 15*time.Minute)
	maker2 := NewJWTMaker("different_secret_key", 15*time.Minute)

	token, err := maker1.GenerateToken("testuser", "ADMIN")
	require.NoError(t, err)

	claims, err := maker2.ParseToken(token)
	assert.Error(t, err)
	assert.Nil(t, claims)

	claims, err = maker1.ParseToken(token)
	assert.NoError(t, err)
	assert.NotNil(t, claims)
}

func flipSignatureBit(t *testing.T, token string, bit int) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	raw[bit/8] ^= 1 << (bit % 8)
	parts[2] = base64.RawURLEncoding.EncodeToString(raw)
	return strings.Join(parts, ".")
}

func unsignedToken(t *testing.T) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	exp := time.Now().Add(time.Hour).Unix()
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"a@x.com","exp":` + strconv.FormatInt(exp, 10) + `}`))
	return header + "." + payload + "."
}

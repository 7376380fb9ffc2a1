package security

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sign mints a token the way an external issuer would, so these tests
// exercise JWTService purely as a verifier, matching its actual role.
func sign(t *testing.T, secret []byte, build func(*jwt.Builder)) string {
	t.Helper()
	b := jwt.NewBuilder().Subject("user123").IssuedAt(time.Now()).Expiration(time.Now().Add(time.Hour))
	if build != nil {
		build(b)
	}
	token, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, secret))
	require.NoError(t, err)
	return string(signed)
}

func TestNewJWTServiceWithIssuer(t *testing.T) {
	service := NewJWTServiceWithIssuer("test-secret", "https://issuer.example.com", "https://api.example.com")

	assert.NotNil(t, service)
	assert.Equal(t, []byte("test-secret"), service.secret)
	assert.Equal(t, "https://issuer.example.com", service.issuer)
	assert.Equal(t, "https://api.example.com", service.audience)
}

func TestValidateTokenWithIssuerAndAudience(t *testing.T) {
	secret := []byte("test-secret")
	issuer := "https://issuer.example.com"
	audience := "https://api.example.com"

	tokenString := sign(t, secret, func(b *jwt.Builder) {
		b.Issuer(issuer).Audience([]string{audience})
	})

	service := NewJWTServiceWithIssuer(string(secret), issuer, audience)
	token, err := service.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user123", token.Subject())
	assert.Equal(t, issuer, token.Issuer())
	assert.Contains(t, token.Audience(), audience)
}

func TestValidateTokenRejectsMismatchedIssuer(t *testing.T) {
	secret := []byte("test-secret")
	tokenString := sign(t, secret, func(b *jwt.Builder) {
		b.Issuer("https://wrong-issuer.example.com")
	})

	service := NewJWTServiceWithIssuer(string(secret), "https://correct-issuer.example.com", "")
	_, err := service.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateTokenRejectsMismatchedAudience(t *testing.T) {
	secret := []byte("test-secret")
	tokenString := sign(t, secret, func(b *jwt.Builder) {
		b.Audience([]string{"https://different-api.example.com"})
	})

	service := NewJWTServiceWithIssuer(string(secret), "", "https://api.example.com")
	_, err := service.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateTokenWithoutIssuerAudienceConfigured(t *testing.T) {
	secret := []byte("test-secret")
	basicService := NewJWTService(string(secret))

	tokenString := sign(t, secret, nil)

	token, err := basicService.ValidateToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user123", token.Subject())
}

func TestTokenExpiration(t *testing.T) {
	secret := []byte("test-secret")
	service := NewJWTService(string(secret))

	tokenString := sign(t, secret, func(b *jwt.Builder) {
		b.Expiration(time.Now().Add(time.Millisecond))
	})

	time.Sleep(10 * time.Millisecond)

	_, err := service.ValidateToken(tokenString)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exp")
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	tokenString := sign(t, []byte("correct-secret"), nil)

	service := NewJWTService("wrong-secret")
	_, err := service.ValidateToken(tokenString)
	assert.Error(t, err)
}

func BenchmarkValidateToken(b *testing.B) {
	secret := []byte("benchmark-secret")
	token, err := jwt.NewBuilder().Subject("user123").Expiration(time.Now().Add(time.Hour)).Build()
	require.NoError(b, err)
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, secret))
	require.NoError(b, err)

	service := NewJWTService(string(secret))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = service.ValidateToken(string(signed))
	}
}

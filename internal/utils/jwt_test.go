package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparelink/parts-marketplace/internal/model"
)

const testSecret = "unit-test-secret"

func TestAccessTokenRoundTrip(t *testing.T) {
	for _, class := range []model.AccountClass{model.ClassAdmin, model.ClassSupplier, model.ClassMobile} {
		tok, err := NewAccessToken(testSecret, class, 42, "who@example.com", 15)
		require.NoError(t, err)
		require.NotEmpty(t, tok.Token)

		claims, err := ParseAccessToken(testSecret, tok.Token)
		require.NoError(t, err, "class %s", class)
		assert.Equal(t, uint64(42), claims.AccountID)
		assert.Equal(t, class, claims.Class)
		assert.Equal(t, "who@example.com", claims.Email)
		assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), claims.ExpiresAt, 5*time.Second)
	}
}

func TestAccessTokenCarriesClassKeyedClaim(t *testing.T) {
	tok, err := NewAccessToken(testSecret, model.ClassSupplier, 7, "s@example.com", 15)
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(tok.Token, jwt.MapClaims{})
	require.NoError(t, err)
	mc := parsed.Claims.(jwt.MapClaims)

	assert.EqualValues(t, 7, mc["sub"])
	assert.EqualValues(t, 7, mc["supplier_id"])
	assert.Equal(t, "supplier", mc["class"])
	assert.NotContains(t, mc, "admin_id")
	assert.NotContains(t, mc, "user_id")
}

func TestParseAccessTokenWrongSecret(t *testing.T) {
	tok, err := NewAccessToken(testSecret, model.ClassAdmin, 1, "a@example.com", 15)
	require.NoError(t, err)

	_, err = ParseAccessToken("other-secret", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenExpired(t *testing.T) {
	tok, err := NewAccessToken(testSecret, model.ClassAdmin, 1, "a@example.com", -1)
	require.NoError(t, err)

	_, err = ParseAccessToken(testSecret, tok.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenGarbage(t *testing.T) {
	_, err := ParseAccessToken(testSecret, "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAccessToken(testSecret, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejectsUnsignedAlg(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":      1,
		"admin_id": 1,
		"class":    "admin",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseAccessToken(testSecret, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejectsClassMismatch(t *testing.T) {
	// A token whose class claim says supplier but which carries admin_id must
	// not verify: the class-keyed id is missing for the claimed class.
	claims := jwt.MapClaims{
		"sub":      9,
		"admin_id": 9,
		"class":    "supplier",
		"email":    "x@example.com",
		"exp":      time.Now().Add(time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseAccessToken(testSecret, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejectsSubjectDisagreement(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":         9,
		"supplier_id": 10,
		"class":       "supplier",
		"exp":         time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseAccessToken(testSecret, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessTokenRejectsUnknownClass(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":       9,
		"ghost_id":  9,
		"class":     "ghost",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseAccessToken(testSecret, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewRefreshTokenShape(t *testing.T) {
	tok, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, tok.Raw, 96) // 48 random bytes, hex encoded
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), tok.Exp, 5*time.Second)

	other, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.NotEqual(t, tok.Raw, other.Raw)
}

func TestHashRefreshRawStable(t *testing.T) {
	h1 := HashRefreshRaw("abc")
	h2 := HashRefreshRaw("abc")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // sha256 hex
	assert.NotEqual(t, h1, HashRefreshRaw("abd"))
}

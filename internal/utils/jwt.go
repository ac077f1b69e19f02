package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA‑256 hashing for refresh tokens
	"encoding/hex"  // hex encoding and decoding functions
	"errors"
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens

	"github.com/sparelink/parts-marketplace/internal/model"
)

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short‑lived, stateless and never persisted; signature
// and expiry are the only facts the server can verify about one.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long‑lived opaque token used to obtain new
// access tokens.  The Raw field travels to the client (cookie only); the
// database stores nothing but a SHA‑256 hash of it.
type RefreshToken struct {
	Raw string    // raw token string returned to the client
	Exp time.Time // UTC expiration time
}

// Claims is the verified content of an access token.  The account id is
// carried twice: under "sub" and under the class-specific key
// (admin_id/supplier_id/user_id), and Parse rejects tokens where the two
// disagree so one account class can never impersonate another.
type Claims struct {
	AccountID uint64
	Class     model.AccountClass
	Email     string
	ExpiresAt time.Time
}

// ErrInvalidToken is returned for any token that fails signature, expiry or
// claim-shape verification.  Callers translate it to a 401.
var ErrInvalidToken = errors.New("invalid access token")

// NewAccessToken builds and signs an HS256 JWT for an account.  Claims:
// subject (sub), the class-keyed duplicate id, account class, email,
// expiration (exp) and issued at (iat).
func NewAccessToken(secret string, class model.AccountClass, accountID uint64, email string, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":           accountID,
		class.ClaimKey(): accountID,
		"class":         string(class),
		"email":         email,
		"exp":           exp.Unix(),
		"iat":           now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies signature and expiry of a raw token and returns
// its typed claims.  Any defect (wrong signing method, tampered payload,
// expired, class/id mismatch) yields ErrInvalidToken.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	classStr, _ := mc["class"].(string)
	class, ok := model.ParseAccountClass(classStr)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	sub, ok := numClaim(mc, "sub")
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	// The semantic key must be present and agree with the subject.
	dup, ok := numClaim(mc, class.ClaimKey())
	if !ok || dup != sub {
		return Claims{}, ErrInvalidToken
	}
	email, _ := mc["email"].(string)
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, ErrInvalidToken
	}
	return Claims{AccountID: sub, Class: class, Email: email, ExpiresAt: exp.Time}, nil
}

// numClaim reads a numeric claim that may have been decoded as float64.
func numClaim(mc jwt.MapClaims, key string) (uint64, bool) {
	switch v := mc[key].(type) {
	case float64:
		return uint64(v), true
	case int64:
		return uint64(v), true
	case uint64:
		return v, true
	}
	return 0, false
}

// NewRefreshToken returns a cryptographically random opaque token (raw) and
// its expiration time.  The ttlDays parameter controls how many days the
// refresh token is valid.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	raw, err := randomHex(48) // 48 bytes -> 96 hex chars
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh token as a hex
// string.  Storing only the hash prevents a leaked database dump from being
// replayed into live sessions.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

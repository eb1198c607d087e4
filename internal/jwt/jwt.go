package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lototrak/internal/config"
	"lototrak/internal/nonce"
)

var (
	ErrInvalidNonce     = errors.New("invalid nonce")
	ErrNonValidToken    = errors.New("token did not pass validation")
	ErrInvalidClaimType = errors.New("invalid claim type")
)

var tokenSignatureAlg = jwt.SigningMethodHS256

// Claim for an authenticated user session. The jti nonce makes the token
// revocable: logout consumes the nonce and the token stops validating.
type AuthClaims struct {
	UserID    string `json:"user_id"`
	MustRenew bool   `json:"must_renew,omitempty"`
	jwt.RegisteredClaims
}

// authTTL returns the auth token lifetime in seconds.
func authTTL() uint {
	return config.Cfg.UserAuthTTL * 24 * 60 * 60
}

func NewAuthClaims(userID string) AuthClaims {
	return AuthClaims{
		UserID:           userID,
		RegisteredClaims: mustCreateRegisteredClaim(authTTL()),
	}
}

// DecodeAuthJWT validates a session token. The jti nonce must still exist;
// a consumed nonce means the session was logged out.
func DecodeAuthJWT(tokenString string) (*AuthClaims, error) {
	claims, err := decodeJWT(tokenString, &AuthClaims{})
	if err != nil {
		return nil, err
	}
	if !nonce.Store.Exists(context.Background(), claims.ID) {
		return nil, ErrInvalidNonce
	}
	return claims, nil
}

func mustCreateRegisteredClaim(ttl uint) jwt.RegisteredClaims {
	n, err := nonce.Nonce(ttl + 10) // nonce TTL is slightly longer than token TTL to allow for clock skew
	if err != nil {
		panic(fmt.Sprintf("failed to generate nonce: %v", err))
	}

	return jwt.RegisteredClaims{
		ID:        n,
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
		ExpiresAt: jwtExpiry(ttl),
	}
}

// Convert TTL to time in future
func tokenTTL(ttl uint) time.Time {
	if ttl <= 0 {
		panic("invalid token TTL")
	}
	return time.Now().UTC().Add(time.Duration(ttl) * time.Second)
}

func jwtExpiry(ttl uint) *jwt.NumericDate {
	expiry := tokenTTL(ttl)
	return jwt.NewNumericDate(expiry)
}

// Generic JWT token generation function
func GenerateJWT(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(tokenSignatureAlg, claims)
	JWTSecret := []byte(config.Cfg.Secret)
	return token.SignedString(JWTSecret)
}

func decodeJWT[T jwt.Claims](tokenString string, claimsType T) (T, error) {
	var zero T

	parsedToken, err := jwt.ParseWithClaims(tokenString, claimsType, func(token *jwt.Token) (interface{}, error) {
		JWTSecret := []byte(config.Cfg.Secret)
		return JWTSecret, nil
	}, jwt.WithValidMethods([]string{tokenSignatureAlg.Alg()}))

	if err != nil {
		return zero, err
	} else if parsedToken == nil || !parsedToken.Valid {
		return zero, ErrNonValidToken
	} else if claims, ok := parsedToken.Claims.(T); ok {
		return claims, nil
	}

	return zero, ErrInvalidClaimType
}

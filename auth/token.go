package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quorum/common"
	"quorum/models"
)

// Claims is the payload carried by an access token: the subject is the
// decimal user id, the role claim allows gating without a user lookup.
type Claims struct {
	Role models.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HMAC-signed bearer tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the given subject and role, expiring after the
// service TTL.
func (s *TokenService) Issue(subject string, role models.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", common.WrapE(common.KindInternal, "could not issue token", err)
	}
	return token, nil
}

// Verify validates signature and expiry and returns the claims. Any failure
// is an UnauthorizedError.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, common.WrapE(common.KindUnauthorized, "invalid or expired token", err)
	}
	if !token.Valid {
		return nil, common.E(common.KindUnauthorized, "invalid or expired token")
	}
	return claims, nil
}

// DecodeUnverified parses the payload without checking the signature. It
// exists for diagnostics only; nothing security-relevant may branch on its
// result.
func (s *TokenService) DecodeUnverified(raw string) (*Claims, error) {
	claims := &Claims{}
	_, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return nil, common.WrapE(common.KindUnauthorized, "malformed token", err)
	}
	return claims, nil
}

// ExtractBearer strips the "Bearer" scheme from an Authorization header
// value. A schemeless value passes through unchanged; an empty header fails.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", common.E(common.KindUnauthorized, "Authentication token not found")
	}
	if strings.Contains(header, "Bearer") {
		return strings.TrimSpace(strings.Replace(header, "Bearer", "", 1)), nil
	}
	return header, nil
}

package token

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pralapin/school-service/internal/core/domain"
	"github.com/pralapin/school-service/internal/core/ports"
)

// JWTIssuer signs RS256 when a key pair is configured, HS256 otherwise.
type JWTIssuer struct {
	method     jwt.SigningMethod
	signKey    any
	verifyKey  any
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

var _ ports.TokenIssuer = (*JWTIssuer)(nil)

type sessionClaims struct {
	Role string          `json:"role,omitempty"`
	Type ports.TokenType `json:"type"`
	jwt.RegisteredClaims
}

func NewHMACIssuer(secret string, accessTTL, refreshTTL time.Duration) *JWTIssuer {
	return &JWTIssuer{
		method:     jwt.SigningMethodHS256,
		signKey:    []byte(secret),
		verifyKey:  []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func NewRSAIssuer(private *rsa.PrivateKey, public *rsa.PublicKey, accessTTL, refreshTTL time.Duration) *JWTIssuer {
	return &JWTIssuer{
		method:     jwt.SigningMethodRS256,
		signKey:    private,
		verifyKey:  public,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (i *JWTIssuer) issue(userID, role string, typ ports.TokenType, ttl time.Duration) (string, error) {
	now := i.now()
	claims := sessionClaims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(i.method, claims).SignedString(i.signKey)
}

func (i *JWTIssuer) IssueAccess(userID, role string) (string, error) {
	return i.issue(userID, role, ports.AccessToken, i.accessTTL)
}

func (i *JWTIssuer) IssueRefresh(userID string) (string, error) {
	return i.issue(userID, "", ports.RefreshToken, i.refreshTTL)
}

// Verify rejects tokens signed with any other algorithm, expired tokens and
// tokens without a subject.
func (i *JWTIssuer) Verify(tokenString string) (*ports.Claims, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != i.method.Alg() {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.verifyKey, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	return &ports.Claims{
		Subject:   claims.Subject,
		Role:      claims.Role,
		Type:      claims.Type,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

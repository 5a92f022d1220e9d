package jwttoken

import (
	"context"
	"errors"
	"time"

	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Tolerated drift between our clock and the credential service's.
const clockSkew = 30 * time.Second

// ActorClaims are the claims the external credential service puts in bearer tokens.
// The subject is the actor's UUID.
type ActorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService validates HS256 bearer tokens. Generation exists for local tooling and tests.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

// NewJWTService builds a validator. Empty issuer or audience disables that check.
func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// GenerateToken mints a token for actorID with the given role.
func (s *JWTService) GenerateToken(ctx context.Context, actorID uuid.UUID, role requestcontext.Role, ttl time.Duration) (string, error) {
	if actorID == uuid.Nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "actor id required")
	}
	if !role.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	now := requestcontext.Now(ctx)
	claims := ActorClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	if s.issuer != "" {
		claims.Issuer = s.issuer
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// ValidateToken verifies signature, algorithm, expiry and the configured issuer/audience.
func (s *JWTService) ValidateToken(tokenString string) (*ActorClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(token *jwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*ActorClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

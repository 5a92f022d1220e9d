package jwttoken

import (
	"rollcall/pkg/platform/middleware/auth"
)

func ToMiddlewareClaims(claims *ActorClaims) *auth.JWTClaims {
	return &auth.JWTClaims{
		Subject: claims.Subject,
		Role:    claims.Role,
	}
}

// JWTServiceAdapter satisfies auth.JWTValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*auth.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return ToMiddlewareClaims(claims), nil
}

var _ auth.JWTValidator = (*JWTServiceAdapter)(nil)

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/journeylens-backend/internal/logger"
	"github.com/yungbote/journeylens-backend/internal/requestdata"
)

var ErrInvalidToken = errors.New("invalid token")

// AuthService verifies producer-issued access tokens and stamps the caller's
// identity onto the request context.
type AuthService interface {
	IssueToken(subject string, ttl time.Duration) (string, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type JWTClaims struct {
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecretKey string
	log          *logger.Logger
}

func NewAuthService(jwtSecretKey string, baseLog *logger.Logger) AuthService {
	return &authService{
		jwtSecretKey: jwtSecretKey,
		log:          baseLog.With("service", "AuthService"),
	}
}

func (as *authService) IssueToken(subject string, ttl time.Duration) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims := &JWTClaims{}
	parsedToken, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return ctx, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsedToken.Valid || claims.Subject == "" {
		return ctx, ErrInvalidToken
	}

	rd := &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      claims.Subject,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

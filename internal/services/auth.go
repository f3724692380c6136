package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/freightquote-backend/internal/modules/negotiation"
	"github.com/yungbote/freightquote-backend/internal/platform/ctxutil"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

// Claims is the bearer token body. Subject carries the party id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService interface {
	IssueToken(role string, partyID uuid.UUID, ttl time.Duration) (string, error)
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey []byte
	issuer       string
	now          func() time.Time
}

func NewAuthService(log *logger.Logger, jwtSecretKey, issuer string) AuthService {
	return &authService{
		log:          log.With("service", "AuthService"),
		jwtSecretKey: []byte(jwtSecretKey),
		issuer:       strings.TrimSpace(issuer),
		now:          time.Now,
	}
}

func (as *authService) IssueToken(role string, partyID uuid.UUID, ttl time.Duration) (string, error) {
	r, ok := negotiation.ParseRole(role)
	if !ok {
		return "", fmt.Errorf("unknown role %q", role)
	}
	if partyID == uuid.Nil {
		return "", fmt.Errorf("missing party id")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := as.now()
	claims := Claims{
		Role: string(r),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   partyID.String(),
			Issuer:    as.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(as.jwtSecretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(as.now),
	}
	if as.issuer != "" {
		opts = append(opts, jwt.WithIssuer(as.issuer))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		as.log.Debug("Rejected bearer token", "error", err)
		return ctx, fmt.Errorf("invalid token")
	}
	role, ok := negotiation.ParseRole(claims.Role)
	if !ok {
		return ctx, fmt.Errorf("invalid token role")
	}
	partyID, err := uuid.Parse(claims.Subject)
	if err != nil || partyID == uuid.Nil {
		return ctx, fmt.Errorf("invalid token subject")
	}
	return ctxutil.WithActor(ctx, &ctxutil.Actor{PartyID: partyID, Role: string(role)}), nil
}

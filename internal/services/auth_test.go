package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	repotest "github.com/yungbote/freightquote-backend/internal/data/repos/testutil"
	"github.com/yungbote/freightquote-backend/internal/platform/ctxutil"
)

func TestAuthTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(repotest.Logger(t), "test-secret", "freightquote")
	party := uuid.New()
	tok, err := svc.IssueToken("carrier", party, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	ctx, err := svc.SetContextFromToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	actor := ctxutil.GetActor(ctx)
	if actor == nil || actor.PartyID != party || actor.Role != "carrier" {
		t.Fatalf("actor: %+v", actor)
	}
}

func TestAuthRejectsBadTokens(t *testing.T) {
	log := repotest.Logger(t)
	svc := NewAuthService(log, "test-secret", "freightquote")
	party := uuid.New()

	if _, err := svc.IssueToken("shipper", party, time.Hour); err == nil {
		t.Fatalf("unknown role must not be issued")
	}
	if _, err := svc.IssueToken("client", uuid.Nil, time.Hour); err == nil {
		t.Fatalf("nil party must not be issued")
	}

	other, _ := NewAuthService(log, "other-secret", "freightquote").IssueToken("client", party, time.Hour)
	wrongIssuer, _ := NewAuthService(log, "test-secret", "someone-else").IssueToken("client", party, time.Hour)

	past := svc.(*authService)
	expiredSvc := &authService{log: past.log, jwtSecretKey: past.jwtSecretKey, issuer: past.issuer, now: func() time.Time { return time.Now().Add(-2 * time.Hour) }}
	expired, _ := expiredSvc.IssueToken("client", party, time.Hour)

	badRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   party.String(),
			Issuer:    "freightquote",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("test-secret"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "client",
		RegisteredClaims: jwt.RegisteredClaims{Subject: party.String(), Issuer: "freightquote"},
	}).SignedString([]byte("test-secret"))

	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role: "system",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   party.String(),
			Issuer:    "freightquote",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"wrong secret": other,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"bad role":     badRole,
		"no expiry":    noExpiry,
		"alg none":     unsigned,
		"garbage":      "not.a.token",
	}
	for name, tok := range cases {
		ctx, err := svc.SetContextFromToken(context.Background(), tok)
		if err == nil {
			t.Fatalf("%s: token accepted", name)
		}
		if ctxutil.GetActor(ctx) != nil {
			t.Fatalf("%s: actor set on rejected token", name)
		}
	}
}

package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/freightquote-backend/internal/platform/apierr"
	"github.com/yungbote/freightquote-backend/internal/platform/ctxutil"
)

func requireActor(ctx context.Context) (*ctxutil.Actor, error) {
	a := ctxutil.GetActor(ctx)
	if a == nil || a.PartyID == uuid.Nil || a.Role == "" {
		return nil, apierr.Unauthorized("missing actor")
	}
	return a, nil
}

func requireRole(ctx context.Context, role string) (*ctxutil.Actor, error) {
	a, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if a.Role != role {
		return nil, apierr.Forbidden("this operation requires the " + role + " role")
	}
	return a, nil
}

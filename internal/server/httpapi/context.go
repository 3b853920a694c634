package httpapi

import (
	"context"

	"github.com/dmitrijs2005/drivekeeper/internal/endpoint"
	"github.com/dmitrijs2005/drivekeeper/internal/server/services"
)

type (
	audienceKey  struct{}
	principalKey struct{}
)

func withAudience(ctx context.Context, a endpoint.Audience) context.Context {
	return context.WithValue(ctx, audienceKey{}, a)
}

func audienceFrom(ctx context.Context) endpoint.Audience {
	a, _ := ctx.Value(audienceKey{}).(endpoint.Audience)
	return a
}

func withPrincipal(ctx context.Context, p *services.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) *services.Principal {
	p, _ := ctx.Value(principalKey{}).(*services.Principal)
	return p
}

package context

import (
	"context"

	"fleamarket/models"
)

type sessionKey struct{}

func NewContextWithSession(ctx context.Context, session models.ClerkSession) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

func GetSessionFromContext(ctx context.Context) (models.ClerkSession, bool) {
	s, ok := ctx.Value(sessionKey{}).(models.ClerkSession)
	return s, ok
}

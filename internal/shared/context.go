package shared

import "context"

type userContextKey struct{}

type sessionTokenContextKey struct{}

// ContextWithUserID stores the authenticated account id in context.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey{}, userID)
}

// UserIDFromContext extracts the authenticated account id from context.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userContextKey{}).(string)
	return id
}

// ContextWithSessionToken stores the presented session token in context.
func ContextWithSessionToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenContextKey{}, token)
}

// SessionTokenFromContext extracts the presented session token from context.
func SessionTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(sessionTokenContextKey{}).(string)
	return token
}

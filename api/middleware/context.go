package middleware

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	ctxUserID contextKey = iota
	ctxRole
	ctxRequestID
)

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxUserID) }

// UserUUIDFromContext parses the authenticated user id.
func UserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func RoleFromContext(ctx context.Context) string { return stringValue(ctx, ctxRole) }

func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxRequestID) }

// WithUserID seeds the authenticated user; used by Auth and by handler tests.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(nonNil(ctx), ctxUserID, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(nonNil(ctx), ctxRole, role)
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(nonNil(ctx), ctxRequestID, id)
}

func nonNil(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

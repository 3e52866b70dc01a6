package auth

import (
	"context"

	"github.com/mind-engage/academy/internal/rbac"
)

type ctxKey string

const ctxKeySub ctxKey = "sub"

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

func SubjectFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeySub); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Identity returns the caller's subject and role as set by JWTMiddleware.
func Identity(ctx context.Context) (sub, role string) {
	return SubjectFromContext(ctx), rbac.RoleFromContext(ctx)
}

package auth

import "context"

type accountKey struct{}

// WithAccountID stores the authenticated account id on the context.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountKey{}, accountID)
}

// AccountIDFromContext returns the authenticated account id, if any.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	accountID, ok := ctx.Value(accountKey{}).(string)
	return accountID, ok && accountID != ""
}

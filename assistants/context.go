package assistants

import "context"

type queryIDKey struct{}

// WithQueryID returns a context carrying the query ID.
// ProcessQuery uses it instead of generating a new one.
func WithQueryID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, queryIDKey{}, id)
}

// QueryID returns the ID of the query, or empty string if ctx is not
// within a query.
func QueryID(ctx context.Context) string {
	id, _ := ctx.Value(queryIDKey{}).(string)
	return id
}

package authz

import "context"

// RoleGrant is the slice of a role the decision engine needs: identity, name
// and the numeric hierarchy level (0 = most privileged). Privilege
// comparison uses the level only, never the role graph's parent edges.
type RoleGrant struct {
	RoleID         int64
	Name           string
	HierarchyLevel int
}

type callerContextKey struct{}

// ContextWithCaller stores the resolved caller id in context. Set by the
// guard middleware after the session user id parses.
func ContextWithCaller(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, callerContextKey{}, userID)
}

// CallerID returns the authenticated caller's user id, zero when absent.
func CallerID(ctx context.Context) int64 {
	id, _ := ctx.Value(callerContextKey{}).(int64)
	return id
}

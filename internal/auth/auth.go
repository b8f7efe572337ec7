package auth

import "context"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleManager  Role = "manager"
)

func ValidRole(r Role) bool {
	return r == RoleCustomer || r == RoleStaff || r == RoleManager
}

// Principal is the authenticated caller. Everything downstream of the
// middleware treats it as a trusted fact and never re-derives it.
type Principal struct {
	ID    string
	Email string
	Role  Role
}

func (p Principal) IsStaff() bool {
	return p.Role == RoleStaff || p.Role == RoleManager
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

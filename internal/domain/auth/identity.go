// Package auth carries the authenticated identity through request contexts.
// Token issuance and verification live at the HTTP boundary; the domain only
// ever sees the resulting Identity.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthenticated is returned when an operation requires an identity and
// none is present in the context.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the verified caller of a request.
type Identity struct {
	UserID  string
	IsAdmin bool
}

type identityKey struct{}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom extracts the identity from the context.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

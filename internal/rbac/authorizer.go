// Package rbac resolves a user's role within a workspace. The
// membership data itself lives in the main application; this service
// only ever reads it.
package rbac

import (
	"context"

	"github.com/audionoise/jam/internal/domain"
)

//go:generate mockgen -source=authorizer.go -destination=mock/authorizer_mock.go -package=mock

// Authorizer answers "what role does this user hold in this
// workspace". Implementations must map workspace ownership to
// domain.RoleAdmin and absent membership to domain.RoleNone.
type Authorizer interface {
	RoleOf(ctx context.Context, ws domain.WorkspaceID, user domain.UserID) (domain.Role, error)
}

package rbac

import (
	"context"
	"sync"

	"github.com/audionoise/jam/internal/domain"
)

// Static is a fixed in-memory role table, used in dev mode and tests.
type Static struct {
	mu    sync.RWMutex
	roles map[domain.WorkspaceID]map[domain.UserID]domain.Role
}

func NewStatic() *Static {
	return &Static{roles: make(map[domain.WorkspaceID]map[domain.UserID]domain.Role)}
}

func (s *Static) Grant(ws domain.WorkspaceID, user domain.UserID, role domain.Role) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roles[ws] == nil {
		s.roles[ws] = make(map[domain.UserID]domain.Role)
	}
	s.roles[ws][user] = role
	return s
}

func (s *Static) RoleOf(_ context.Context, ws domain.WorkspaceID, user domain.UserID) (domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if role, ok := s.roles[ws][user]; ok {
		return role, nil
	}
	return domain.RoleNone, nil
}

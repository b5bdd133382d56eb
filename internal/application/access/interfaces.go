package access

import "context"

// Member is the chat-platform view of a guild member.
type Member struct {
	Identity string
	RoleIDs  []string
}

// HasRole reports whether the member currently holds the given role.
func (m *Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// ChatClient is the chat-platform contract consumed by the dispatcher and by
// bulk operations. GetMember returns (nil, nil) when the identity is not a
// guild member; callers treat that as a no-op success.
type ChatClient interface {
	GetMember(ctx context.Context, identity string) (*Member, error)
	AddRole(ctx context.Context, identity, roleID string) error
	RemoveRole(ctx context.Context, identity, roleID string) error
	SendDirectMessage(ctx context.Context, identity, content string) error
	// ListRoleMembers returns every guild member holding the given role,
	// used to resolve target sets for one-time bulk operations.
	ListRoleMembers(ctx context.Context, roleID string) ([]Member, error)
}

package chat

import (
	"context"

	"membergate/internal/application/access"
	"membergate/internal/shared/logger"
)

// InertClient is the no-op ChatClient used when Discord credentials are not
// configured. Every mutation succeeds without doing anything, so the rest of
// the process keeps running and record state still converges.
type InertClient struct {
	logger logger.Interface
}

// NewInertClient creates a chat client that performs no actions.
func NewInertClient(log logger.Interface) *InertClient {
	log.Warnw("discord is not configured, chat actions are disabled")
	return &InertClient{logger: log}
}

func (c *InertClient) GetMember(ctx context.Context, identity string) (*access.Member, error) {
	return nil, nil
}

func (c *InertClient) AddRole(ctx context.Context, identity, roleID string) error {
	c.logger.Debugw("chat disabled, role add skipped", "identity", identity, "role_id", roleID)
	return nil
}

func (c *InertClient) RemoveRole(ctx context.Context, identity, roleID string) error {
	c.logger.Debugw("chat disabled, role remove skipped", "identity", identity, "role_id", roleID)
	return nil
}

func (c *InertClient) SendDirectMessage(ctx context.Context, identity, content string) error {
	c.logger.Debugw("chat disabled, DM skipped", "identity", identity)
	return nil
}

func (c *InertClient) ListRoleMembers(ctx context.Context, roleID string) ([]access.Member, error) {
	return nil, nil
}

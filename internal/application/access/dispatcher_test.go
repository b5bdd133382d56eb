package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membergate/internal/domain/entitlement"
	"membergate/internal/shared/config"
	"membergate/internal/shared/logger"
)

// fakeChatClient is an in-memory ChatClient tracking role membership.
type fakeChatClient struct {
	members map[string]map[string]bool // identity -> role set

	addErr    error
	removeErr error
	dmErr     error
	dmSent    []string
}

func newFakeChatClient() *fakeChatClient {
	return &fakeChatClient{members: make(map[string]map[string]bool)}
}

func (f *fakeChatClient) addMember(identity string, roles ...string) {
	set := make(map[string]bool, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	f.members[identity] = set
}

func (f *fakeChatClient) GetMember(ctx context.Context, identity string) (*Member, error) {
	set, ok := f.members[identity]
	if !ok {
		return nil, nil
	}
	m := &Member{Identity: identity}
	for r := range set {
		m.RoleIDs = append(m.RoleIDs, r)
	}
	return m, nil
}

func (f *fakeChatClient) AddRole(ctx context.Context, identity, roleID string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.members[identity][roleID] = true
	return nil
}

func (f *fakeChatClient) RemoveRole(ctx context.Context, identity, roleID string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.members[identity], roleID)
	return nil
}

func (f *fakeChatClient) SendDirectMessage(ctx context.Context, identity, content string) error {
	if f.dmErr != nil {
		return f.dmErr
	}
	f.dmSent = append(f.dmSent, identity)
	return nil
}

func (f *fakeChatClient) ListRoleMembers(ctx context.Context, roleID string) ([]Member, error) {
	var out []Member
	for identity, set := range f.members {
		if set[roleID] {
			out = append(out, Member{Identity: identity, RoleIDs: []string{roleID}})
		}
	}
	return out, nil
}

func (f *fakeChatClient) roles(identity string) map[string]bool {
	return f.members[identity]
}

// --- helpers ---

func testConfig() config.DiscordConfig {
	return config.DiscordConfig{
		BotToken:             "token",
		GuildID:              "guild",
		RestrictedRoleID:     "role-restricted",
		DefaultPremiumRoleID: "role-premium",
		PremiumRoleByLocale: map[string]string{
			"role-locale-de": "role-premium-de",
		},
	}
}

func newTestDispatcher(chat ChatClient) *Dispatcher {
	return NewDispatcher(chat, testConfig(), logger.NewLogger())
}

func TestGrantIsIdempotent(t *testing.T) {
	chat := newFakeChatClient()
	chat.addMember("u1", "role-restricted")
	d := newTestDispatcher(chat)

	require.NoError(t, d.Grant(context.Background(), "u1"))
	after := map[string]bool{}
	for r := range chat.roles("u1") {
		after[r] = true
	}

	require.NoError(t, d.Grant(context.Background(), "u1"))
	assert.Equal(t, after, chat.roles("u1"))
	assert.True(t, chat.roles("u1")["role-premium"])
	assert.False(t, chat.roles("u1")["role-restricted"])
}

func TestGrantResolvesLocaleRole(t *testing.T) {
	chat := newFakeChatClient()
	chat.addMember("u1", "role-locale-de")
	d := newTestDispatcher(chat)

	require.NoError(t, d.Grant(context.Background(), "u1"))
	assert.True(t, chat.roles("u1")["role-premium-de"])
	assert.False(t, chat.roles("u1")["role-premium"])
}

func TestGrantMissingMemberIsNoop(t *testing.T) {
	chat := newFakeChatClient()
	d := newTestDispatcher(chat)

	assert.NoError(t, d.Grant(context.Background(), "ghost"))
	assert.NoError(t, d.Revoke(context.Background(), "ghost"))
}

func TestRevokeIsIdempotent(t *testing.T) {
	chat := newFakeChatClient()
	chat.addMember("u1", "role-premium", "role-premium-de")
	d := newTestDispatcher(chat)

	require.NoError(t, d.Revoke(context.Background(), "u1"))
	after := map[string]bool{}
	for r := range chat.roles("u1") {
		after[r] = true
	}

	require.NoError(t, d.Revoke(context.Background(), "u1"))
	assert.Equal(t, after, chat.roles("u1"))
	assert.False(t, chat.roles("u1")["role-premium"])
	assert.False(t, chat.roles("u1")["role-premium-de"])
	assert.True(t, chat.roles("u1")["role-restricted"])
}

func TestGrantPropagatesRoleMutationError(t *testing.T) {
	chat := newFakeChatClient()
	chat.addMember("u1")
	chat.addErr = errors.New("rate limited")
	d := newTestDispatcher(chat)

	assert.Error(t, d.Grant(context.Background(), "u1"))
}

func TestNotifySwallowsFailure(t *testing.T) {
	chat := newFakeChatClient()
	chat.addMember("u1")
	chat.dmErr = errors.New("DMs disabled")
	d := newTestDispatcher(chat)

	// Must not panic or propagate
	d.Notify(context.Background(), "u1", entitlement.NoticeWelcome)
	assert.Empty(t, chat.dmSent)

	chat.dmErr = nil
	d.Notify(context.Background(), "u1", entitlement.NoticeEnded)
	assert.Equal(t, []string{"u1"}, chat.dmSent)
}

func TestNotifyNoneSendsNothing(t *testing.T) {
	chat := newFakeChatClient()
	chat.addMember("u1")
	d := newTestDispatcher(chat)

	d.Notify(context.Background(), "u1", entitlement.NoticeNone)
	assert.Empty(t, chat.dmSent)
}

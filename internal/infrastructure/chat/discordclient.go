// Package chat implements the chat-platform contract against the Discord
// REST API.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"membergate/internal/application/access"
	"membergate/internal/shared/config"
	"membergate/internal/shared/logger"
)

// memberPageSize is Discord's maximum page size for the guild members list.
const memberPageSize = 1000

// DiscordClient implements access.ChatClient for one guild. All calls are
// plain REST; no gateway connection is opened.
type DiscordClient struct {
	session *discordgo.Session
	guildID string
	logger  logger.Interface
}

// NewDiscordClient creates a Discord-backed chat client.
func NewDiscordClient(cfg config.DiscordConfig, log logger.Interface) (*DiscordClient, error) {
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("discord bot token and guild ID are required")
	}

	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	return &DiscordClient{
		session: session,
		guildID: cfg.GuildID,
		logger:  log,
	}, nil
}

// GetMember fetches the guild member. Returns (nil, nil) when the identity
// is not a member of the guild.
func (c *DiscordClient) GetMember(ctx context.Context, identity string) (*access.Member, error) {
	member, err := c.session.GuildMember(c.guildID, identity, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownMember(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch guild member: %w", err)
	}

	return toMember(member), nil
}

// AddRole adds the role to the member.
func (c *DiscordClient) AddRole(ctx context.Context, identity, roleID string) error {
	if err := c.session.GuildMemberRoleAdd(c.guildID, identity, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to add role %s: %w", roleID, err)
	}
	return nil
}

// RemoveRole removes the role from the member.
func (c *DiscordClient) RemoveRole(ctx context.Context, identity, roleID string) error {
	if err := c.session.GuildMemberRoleRemove(c.guildID, identity, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to remove role %s: %w", roleID, err)
	}
	return nil
}

// SendDirectMessage opens (or reuses) the DM channel and sends the content.
// Users with DMs disabled surface as an error the caller is expected to
// swallow.
func (c *DiscordClient) SendDirectMessage(ctx context.Context, identity, content string) error {
	channel, err := c.session.UserChannelCreate(identity, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}

	if _, err := c.session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx)); err != nil {
		if isDMsDisabled(err) {
			return fmt.Errorf("user has DMs disabled: %w", err)
		}
		return fmt.Errorf("failed to send DM: %w", err)
	}
	return nil
}

// ListRoleMembers pages through the full guild member list and returns those
// holding the role. Discord has no role-scoped listing endpoint.
func (c *DiscordClient) ListRoleMembers(ctx context.Context, roleID string) ([]access.Member, error) {
	var out []access.Member
	after := ""

	for {
		page, err := c.session.GuildMembers(c.guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list guild members: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, m := range page {
			if m.User == nil {
				continue
			}
			for _, r := range m.Roles {
				if r == roleID {
					out = append(out, *toMember(m))
					break
				}
			}
		}

		after = page[len(page)-1].User.ID
		if len(page) < memberPageSize {
			break
		}
	}

	c.logger.Debugw("role members listed", "role_id", roleID, "count", len(out))
	return out, nil
}

func toMember(m *discordgo.Member) *access.Member {
	out := &access.Member{RoleIDs: m.Roles}
	if m.User != nil {
		out.Identity = m.User.ID
	}
	return out
}

func isUnknownMember(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeUnknownMember ||
			restErr.Message.Code == discordgo.ErrCodeUnknownUser
	}
	return false
}

func isDMsDisabled(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser
	}
	return false
}

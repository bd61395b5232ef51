package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// session is the slice of *discordgo.Session the gateway calls.
type session interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
}

// Gateway answers membership, permission and role questions against the Discord REST API.
// Communities are guilds and members are guild members.
type Gateway struct {
	session session
}

// NewGateway opens a REST-only bot session. No websocket connection is made.
func NewGateway(botToken string) (*Gateway, error) {
	token := strings.TrimSpace(botToken)
	if token == "" {
		return nil, errors.New("discord bot token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Gateway{session: s}, nil
}

func newGatewayWithSession(s session) *Gateway {
	return &Gateway{session: s}
}

// IsEligible reports whether memberID is a human member of the guild.
func (g *Gateway) IsEligible(ctx context.Context, communityID, memberID string) (bool, error) {
	member, err := g.session.GuildMember(communityID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknown(err) {
			return false, nil
		}
		return false, fmt.Errorf("lookup guild member: %w", err)
	}
	if member.User != nil && member.User.Bot {
		return false, nil
	}
	return true, nil
}

// IsStaff reports whether memberID owns the guild or holds a role with the administrator permission.
func (g *Gateway) IsStaff(ctx context.Context, communityID, memberID string) (bool, error) {
	guild, err := g.session.Guild(communityID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("lookup guild: %w", err)
	}
	if guild.OwnerID == memberID {
		return true, nil
	}

	member, err := g.session.GuildMember(communityID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		if isUnknown(err) {
			return false, nil
		}
		return false, fmt.Errorf("lookup guild member: %w", err)
	}
	roles, err := g.session.GuildRoles(communityID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("list guild roles: %w", err)
	}

	held := make(map[string]bool, len(member.Roles)+1)
	for _, id := range member.Roles {
		held[id] = true
	}
	// the @everyone role shares the guild id and applies to every member
	held[communityID] = true

	for _, role := range roles {
		if role != nil && held[role.ID] && role.Permissions&discordgo.PermissionAdministrator != 0 {
			return true, nil
		}
	}
	return false, nil
}

func (g *Gateway) MemberRoles(ctx context.Context, communityID, memberID string) ([]string, error) {
	member, err := g.session.GuildMember(communityID, memberID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("lookup guild member: %w", err)
	}
	return member.Roles, nil
}

func (g *Gateway) AddRole(ctx context.Context, communityID, memberID, roleID string) error {
	return g.session.GuildMemberRoleAdd(communityID, memberID, roleID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason("Vouch tier update"))
}

func (g *Gateway) RemoveRole(ctx context.Context, communityID, memberID, roleID string) error {
	return g.session.GuildMemberRoleRemove(communityID, memberID, roleID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason("Vouch tier update"))
}

func isUnknown(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Message == nil {
		return false
	}
	switch restErr.Message.Code {
	case discordgo.ErrCodeUnknownMember, discordgo.ErrCodeUnknownUser:
		return true
	}
	return false
}

// Offline stands in for the gateway when no bot token is configured. Every member is eligible,
// nobody is staff through it, and roles are tracked in memory only.
type Offline struct {
	mu    sync.Mutex
	roles map[string]map[string]bool
}

func NewOffline() *Offline {
	return &Offline{roles: map[string]map[string]bool{}}
}

func (o *Offline) IsEligible(context.Context, string, string) (bool, error) { return true, nil }

func (o *Offline) IsStaff(context.Context, string, string) (bool, error) { return false, nil }

func (o *Offline) MemberRoles(_ context.Context, communityID, memberID string) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := []string{}
	for id := range o.roles[communityID+"/"+memberID] {
		out = append(out, id)
	}
	return out, nil
}

func (o *Offline) AddRole(_ context.Context, communityID, memberID, roleID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := communityID + "/" + memberID
	if o.roles[key] == nil {
		o.roles[key] = map[string]bool{}
	}
	o.roles[key][roleID] = true
	return nil
}

func (o *Offline) RemoveRole(_ context.Context, communityID, memberID, roleID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.roles[communityID+"/"+memberID], roleID)
	return nil
}

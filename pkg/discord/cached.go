package discord

import (
	"context"
	"time"

	"github.com/gamenightbot/gamenight/pkg/cache"
)

// CachedClient fronts the REST client with short-TTL Redis caching for the
// fetches the API and gateway hammer: guilds, channels, roles, members.
// The cache is advisory; a miss or a Redis outage falls through to Discord.
type CachedClient struct {
	*Client
	cache *cache.Client
	ttl   time.Duration
}

// NewCachedClient wraps client with the given cache and entry TTL.
func NewCachedClient(client *Client, c *cache.Client, ttl time.Duration) *CachedClient {
	return &CachedClient{Client: client, cache: c, ttl: ttl}
}

// GetGuild fetches a guild, cached.
func (c *CachedClient) GetGuild(ctx context.Context, guildID string) (*Guild, error) {
	key := cache.GuildKey(guildID)
	var g Guild
	if hit, err := c.cache.GetJSON(ctx, key, &g); err == nil && hit {
		return &g, nil
	}

	fresh, err := c.Client.GetGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	_ = c.cache.SetJSON(ctx, key, fresh, c.ttl)
	return fresh, nil
}

// GetGuildChannels fetches a guild's channels, cached.
func (c *CachedClient) GetGuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	key := cache.ChannelsKey(guildID)
	var channels []Channel
	if hit, err := c.cache.GetJSON(ctx, key, &channels); err == nil && hit {
		return channels, nil
	}

	fresh, err := c.Client.GetGuildChannels(ctx, guildID)
	if err != nil {
		return nil, err
	}
	_ = c.cache.SetJSON(ctx, key, fresh, c.ttl)
	return fresh, nil
}

// GetGuildRoles fetches a guild's roles, cached.
func (c *CachedClient) GetGuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	key := cache.RolesKey(guildID)
	var roles []Role
	if hit, err := c.cache.GetJSON(ctx, key, &roles); err == nil && hit {
		return roles, nil
	}

	fresh, err := c.Client.GetGuildRoles(ctx, guildID)
	if err != nil {
		return nil, err
	}
	_ = c.cache.SetJSON(ctx, key, fresh, c.ttl)
	return fresh, nil
}

// GetGuildMember fetches one member, cached. Non-membership is cached too,
// as an empty entry, so repeated 404 probes do not hit Discord.
func (c *CachedClient) GetGuildMember(ctx context.Context, guildID, userID string) (*Member, error) {
	key := cache.MemberKey(guildID, userID)
	var cached struct {
		Member *Member `json:"member"`
	}
	if hit, err := c.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached.Member, nil
	}

	fresh, err := c.Client.GetGuildMember(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	cached.Member = fresh
	_ = c.cache.SetJSON(ctx, key, cached, c.ttl)
	return fresh, nil
}

// ListGuildMembers fetches the full member list, cached.
func (c *CachedClient) ListGuildMembers(ctx context.Context, guildID string) ([]Member, error) {
	key := cache.MembersKey(guildID)
	var members []Member
	if hit, err := c.cache.GetJSON(ctx, key, &members); err == nil && hit {
		return members, nil
	}

	fresh, err := c.Client.ListGuildMembers(ctx, guildID)
	if err != nil {
		return nil, err
	}
	_ = c.cache.SetJSON(ctx, key, fresh, c.ttl)
	return fresh, nil
}

// GetCurrentUserGuilds lists an OAuth user's guilds, cached per user.
func (c *CachedClient) GetCurrentUserGuilds(ctx context.Context, userDiscordID, bearerToken string) ([]Guild, error) {
	key := cache.UserGuildsKey(userDiscordID)
	var guilds []Guild
	if hit, err := c.cache.GetJSON(ctx, key, &guilds); err == nil && hit {
		return guilds, nil
	}

	fresh, err := c.Client.GetCurrentUserGuilds(ctx, bearerToken)
	if err != nil {
		return nil, err
	}
	_ = c.cache.SetJSON(ctx, key, fresh, c.ttl)
	return fresh, nil
}

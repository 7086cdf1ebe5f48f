package cache

import "fmt"

// Key builders. All keys are namespaced under gamenight: so the instance
// can share a Redis database with other tools.

// SessionKey stores a web session by its opaque token.
func SessionKey(token string) string {
	return "gamenight:session:" + token
}

// GuildKey caches a Discord guild fetch.
func GuildKey(guildDiscordID string) string {
	return "gamenight:discord:guild:" + guildDiscordID
}

// ChannelsKey caches a guild's channel list.
func ChannelsKey(guildDiscordID string) string {
	return "gamenight:discord:channels:" + guildDiscordID
}

// RolesKey caches a guild's role list.
func RolesKey(guildDiscordID string) string {
	return "gamenight:discord:roles:" + guildDiscordID
}

// MembersKey caches a guild's member list.
func MembersKey(guildDiscordID string) string {
	return "gamenight:discord:members:" + guildDiscordID
}

// MemberKey caches one guild member.
func MemberKey(guildDiscordID, userDiscordID string) string {
	return fmt.Sprintf("gamenight:discord:member:%s:%s", guildDiscordID, userDiscordID)
}

// UserGuildsKey caches the guild list visible to an OAuth user token.
func UserGuildsKey(userDiscordID string) string {
	return "gamenight:discord:user-guilds:" + userDiscordID
}

// EditWindowKey is the per-message announcement-edit rate limit.
func EditWindowKey(channelID, messageID string) string {
	return fmt.Sprintf("gamenight:edit-window:%s:%s", channelID, messageID)
}

// PendingEditKey holds the coalesced announcement content waiting for the
// edit window to clear.
func PendingEditKey(channelID, messageID string) string {
	return fmt.Sprintf("gamenight:pending-edit:%s:%s", channelID, messageID)
}

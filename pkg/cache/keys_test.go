package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeysAreNamespacedAndDistinct(t *testing.T) {
	keys := []string{
		SessionKey("tok"),
		GuildKey("1"),
		ChannelsKey("1"),
		RolesKey("1"),
		MembersKey("1"),
		MemberKey("1", "2"),
		UserGuildsKey("2"),
		EditWindowKey("10", "20"),
		PendingEditKey("10", "20"),
	}

	seen := make(map[string]bool)
	for _, k := range keys {
		assert.Contains(t, k, "gamenight:")
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

func TestMemberKeyIncludesBothIDs(t *testing.T) {
	k := MemberKey("guild-1", "user-2")
	assert.Equal(t, "gamenight:discord:member:guild-1:user-2", k)
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamenightbot/gamenight/pkg/discord"
	"github.com/gamenightbot/gamenight/pkg/models"
)

func member(id, username, globalName, nick string) discord.Member {
	return discord.Member{
		User: discord.User{ID: id, Username: username, GlobalName: globalName},
		Nick: nick,
	}
}

func testMembers() []discord.Member {
	return []discord.Member{
		member("100", "alice", "Alice A", ""),
		member("200", "bob", "Bob B", "Bobby"),
		member("300", "carol", "", ""),
		member("400", "carola", "", ""),
	}
}

func entry(input string) ParticipantEntry {
	return ParticipantEntry{Input: input, PositionType: models.PositionRegular, Position: 1}
}

func TestValidateMentionsResolvesByUsername(t *testing.T) {
	resolved, err := ValidateMentions([]ParticipantEntry{entry("@alice")}, testMembers())
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "100", resolved[0].UserDiscordID)
	assert.Equal(t, "alice", resolved[0].Username)
	assert.Equal(t, "Alice A", resolved[0].DisplayName)
	assert.Equal(t, models.PositionRegular, resolved[0].PositionType)
}

func TestValidateMentionsResolvesByNickCaseInsensitive(t *testing.T) {
	resolved, err := ValidateMentions([]ParticipantEntry{entry("@BOBBY")}, testMembers())
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "200", resolved[0].UserDiscordID)
}

func TestValidateMentionsRawMentionForm(t *testing.T) {
	resolved, err := ValidateMentions(
		[]ParticipantEntry{entry("<@300>"), entry("<@!100>")}, testMembers())
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "300", resolved[0].UserDiscordID)
	assert.Equal(t, "100", resolved[1].UserDiscordID)
}

func TestValidateMentionsPlaceholderPassesThrough(t *testing.T) {
	resolved, err := ValidateMentions(
		[]ParticipantEntry{entry("Pizza duty"), entry("TBD friend")}, testMembers())
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.True(t, resolved[0].IsPlaceholder())
	assert.Equal(t, "Pizza duty", resolved[0].Input)
}

func TestValidateMentionsUnknownNameWithSuggestions(t *testing.T) {
	_, err := ValidateMentions([]ParticipantEntry{entry("@caro")}, testMembers())
	require.Error(t, err)

	me, ok := IsMentionValidationError(err)
	require.True(t, ok)
	require.Len(t, me.Invalid, 1)
	assert.Equal(t, "@caro", me.Invalid[0].Input)
	assert.Equal(t, "no member matches this name", me.Invalid[0].Reason)

	// Substring suggestions: carol and carola both contain "caro".
	ids := []string{}
	for _, s := range me.Invalid[0].Suggestions {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{"300", "400"}, ids)
}

func TestValidateMentionsAmbiguousName(t *testing.T) {
	members := append(testMembers(), member("500", "dave", "", ""), member("600", "other", "", "dave"))

	_, err := ValidateMentions([]ParticipantEntry{entry("@dave")}, members)
	require.Error(t, err)

	me, ok := IsMentionValidationError(err)
	require.True(t, ok)
	require.Len(t, me.Invalid, 1)
	assert.Equal(t, "name matches more than one member", me.Invalid[0].Reason)
	assert.Len(t, me.Invalid[0].Suggestions, 2)
}

func TestValidateMentionsKeepsValidEntriesOnFailure(t *testing.T) {
	entries := []ParticipantEntry{entry("@alice"), entry("@nobody"), entry("Snack table")}

	_, err := ValidateMentions(entries, testMembers())
	require.Error(t, err)

	me, ok := IsMentionValidationError(err)
	require.True(t, ok)
	require.Len(t, me.Invalid, 1)
	require.Len(t, me.Valid, 2, "resolved entries survive alongside the failure")
	assert.Equal(t, "100", me.Valid[0].UserDiscordID)
	assert.True(t, me.Valid[1].IsPlaceholder())
}

func TestValidateMentionsRawMentionNotAMember(t *testing.T) {
	_, err := ValidateMentions([]ParticipantEntry{entry("<@999>")}, testMembers())
	require.Error(t, err)

	me, ok := IsMentionValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "not a member of this server", me.Invalid[0].Reason)
}

func TestParseRawMention(t *testing.T) {
	tests := []struct {
		input  string
		wantID string
		ok     bool
	}{
		{input: "<@123>", wantID: "123", ok: true},
		{input: "<@!123>", wantID: "123", ok: true},
		{input: "<@>", ok: false},
		{input: "<@abc>", ok: false},
		{input: "@name", ok: false},
		{input: "plain", ok: false},
	}

	for _, tc := range tests {
		id, ok := parseRawMention(tc.input)
		assert.Equal(t, tc.ok, ok, "input %q", tc.input)
		if tc.ok {
			assert.Equal(t, tc.wantID, id)
		}
	}
}

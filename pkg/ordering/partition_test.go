package ordering

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamenightbot/gamenight/pkg/models"
)

var baseTime = time.Date(2025, 7, 4, 18, 0, 0, 0, time.UTC)

func user(discordID string, pt models.PositionType, pos int, joinOffset time.Duration) models.Participant {
	uid := "u-" + discordID
	return models.Participant{
		ID:           "p-" + discordID,
		UserID:       &uid,
		DiscordID:    &discordID,
		Mention:      "<@" + discordID + ">",
		PositionType: pt,
		Position:     pos,
		JoinedAt:     baseTime.Add(joinOffset),
	}
}

// placeholder builds a placeholder row holding a Regular-tier slot, the
// way the roster form assigns them.
func placeholder(name string, pos int, joinOffset time.Duration) models.Participant {
	return models.Participant{
		ID:           "p-" + name,
		Mention:      name,
		PositionType: models.PositionRegular,
		Position:     pos,
		JoinedAt:     baseTime.Add(joinOffset),
	}
}

func TestPartition_SortOrder(t *testing.T) {
	// Deliberately shuffled input: regular, placeholder, host, cohost. The
	// placeholder holds the first Regular slot, so it sorts ahead of the
	// regular user despite being a placeholder.
	roster := []models.Participant{
		user("300", models.PositionRegular, 1, time.Minute),
		placeholder("Walk-in", 0, 0),
		user("100", models.PositionHost, 0, 2*time.Minute),
		user("200", models.PositionCohost, 0, 3*time.Minute),
	}

	p := Partition(roster, 10)
	require.Len(t, p.SortedAll, 4)
	assert.Equal(t, models.PositionHost, p.SortedAll[0].PositionType)
	assert.Equal(t, models.PositionCohost, p.SortedAll[1].PositionType)
	assert.Equal(t, "Walk-in", p.SortedAll[2].Mention)
	assert.Equal(t, "<@300>", p.SortedAll[3].Mention)
}

func TestPartition_TiesBrokenByPositionThenJoinedAt(t *testing.T) {
	roster := []models.Participant{
		user("b", models.PositionRegular, 1, 0),
		user("a", models.PositionRegular, 0, time.Hour),
		user("c", models.PositionRegular, 1, -time.Minute),
	}

	p := Partition(roster, 3)
	assert.Equal(t, "a", *p.SortedAll[0].DiscordID, "lower position wins regardless of join time")
	assert.Equal(t, "c", *p.SortedAll[1].DiscordID, "earlier join wins within equal position")
	assert.Equal(t, "b", *p.SortedAll[2].DiscordID)
}

func TestPartition_PlaceholdersConsumeConfirmedSeats(t *testing.T) {
	roster := []models.Participant{
		user("host", models.PositionHost, 0, 0),
		placeholder("Reserved", 0, time.Minute),
		user("alice", models.PositionRegular, 0, 2*time.Minute),
	}

	p := Partition(roster, 2)
	require.Len(t, p.Confirmed, 2)
	require.Len(t, p.Overflow, 1)

	// The placeholder holds the second confirmed seat; Alice waits.
	assert.True(t, p.Confirmed[1].IsPlaceholder())
	assert.Contains(t, p.OverflowUserIDs, "alice")
	assert.NotContains(t, p.ConfirmedUserIDs, "alice")
}

func TestPartition_UserIDSetsExcludePlaceholders(t *testing.T) {
	roster := []models.Participant{
		user("host", models.PositionHost, 0, 0),
		placeholder("Maybe-Bob", 0, time.Minute),
		placeholder("Maybe-Carol", 1, time.Minute),
	}

	p := Partition(roster, 1)
	assert.Equal(t, map[string]struct{}{"host": {}}, p.ConfirmedUserIDs)
	assert.Empty(t, p.OverflowUserIDs, "placeholders contribute no user ids")
}

func TestPartition_CapEdgeCases(t *testing.T) {
	roster := []models.Participant{
		user("host", models.PositionHost, 0, 0),
		user("alice", models.PositionRegular, 0, time.Minute),
	}

	t.Run("zero cap puts everyone on the waitlist", func(t *testing.T) {
		p := Partition(roster, 0)
		assert.Empty(t, p.Confirmed)
		assert.Len(t, p.Overflow, 2)
	})

	t.Run("negative cap treated as zero", func(t *testing.T) {
		p := Partition(roster, -5)
		assert.Empty(t, p.Confirmed)
	})

	t.Run("cap beyond roster confirms everyone", func(t *testing.T) {
		p := Partition(roster, 50)
		assert.Len(t, p.Confirmed, 2)
		assert.Empty(t, p.Overflow)
	})

	t.Run("empty roster", func(t *testing.T) {
		p := Partition(nil, 4)
		assert.Empty(t, p.SortedAll)
		assert.Empty(t, p.Confirmed)
		assert.Empty(t, p.Overflow)
	})
}

func TestPartition_DoesNotMutateInput(t *testing.T) {
	roster := []models.Participant{
		user("b", models.PositionRegular, 1, 0),
		user("a", models.PositionHost, 0, 0),
	}
	Partition(roster, 2)
	assert.Equal(t, "b", *roster[0].DiscordID, "input slice order preserved")
}

func TestPromoted_PlaceholderRemoval(t *testing.T) {
	// Placeholder at position 0 with max_players = 1 and one real overflow
	// user: removing the placeholder yields exactly one promotion.
	before := []models.Participant{
		placeholder("Reserved", 0, 0),
		user("alice", models.PositionRegular, 0, time.Minute),
	}
	after := []models.Participant{
		user("alice", models.PositionRegular, 0, time.Minute),
	}

	old := Partition(before, 1)
	require.Contains(t, old.OverflowUserIDs, "alice")

	updated := Partition(after, 1)
	promoted := Promoted(old, updated)
	assert.Equal(t, []string{"alice"}, promoted)
}

func TestPromoted_MaxPlayersIncrease(t *testing.T) {
	// [Host, Placeholder, Alice] with max 2 → max 3 promotes Alice.
	roster := []models.Participant{
		user("host", models.PositionHost, 0, 0),
		placeholder("Reserved", 0, time.Minute),
		user("alice", models.PositionRegular, 0, 2*time.Minute),
	}

	old := Partition(roster, 2)
	updated := Partition(roster, 3)

	assert.Equal(t, []string{"alice"}, Promoted(old, updated))
	assert.Empty(t, updated.OverflowUserIDs)
}

func TestPromoted_NoChangeNoPromotion(t *testing.T) {
	roster := []models.Participant{
		user("host", models.PositionHost, 0, 0),
		user("alice", models.PositionRegular, 0, time.Minute),
	}
	p := Partition(roster, 2)
	assert.Empty(t, Promoted(p, p))
}

func TestPromoted_DemotionIsNotPromotion(t *testing.T) {
	roster := []models.Participant{
		user("host", models.PositionHost, 0, 0),
		user("alice", models.PositionRegular, 0, time.Minute),
		user("bob", models.PositionRegular, 1, 2*time.Minute),
	}

	// Shrinking the cap demotes Bob; nobody is promoted.
	old := Partition(roster, 3)
	updated := Partition(roster, 2)
	assert.Empty(t, Promoted(old, updated))
	assert.Contains(t, updated.OverflowUserIDs, "bob")
}

func TestPromoted_MultiplePromotionsSorted(t *testing.T) {
	roster := []models.Participant{
		user("host", models.PositionHost, 0, 0),
		user("zoe", models.PositionRegular, 0, time.Minute),
		user("amy", models.PositionRegular, 1, 2*time.Minute),
	}

	old := Partition(roster, 1)
	updated := Partition(roster, 3)
	assert.Equal(t, []string{"amy", "zoe"}, Promoted(old, updated))
}

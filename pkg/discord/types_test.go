package discord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemberDisplayName(t *testing.T) {
	m := Member{User: User{Username: "alice", GlobalName: "Alice A"}}
	assert.Equal(t, "Alice A", m.DisplayName())

	m.Nick = "Al"
	assert.Equal(t, "Al", m.DisplayName())

	plain := Member{User: User{Username: "bob"}}
	assert.Equal(t, "bob", plain.DisplayName())
}

func TestMemberHasRole(t *testing.T) {
	m := Member{Roles: []string{"1", "2", "3"}}

	assert.True(t, m.HasRole([]string{"2"}))
	assert.True(t, m.HasRole([]string{"9", "3"}))
	assert.False(t, m.HasRole([]string{"9"}))
	assert.False(t, m.HasRole(nil), "empty want set matches nothing")
}

func TestInteractionInvoker(t *testing.T) {
	fromGuild := Interaction{Member: &Member{User: User{ID: "u1"}}}
	assert.Equal(t, "u1", fromGuild.Invoker().ID)

	fromDM := Interaction{User: &User{ID: "u2"}}
	assert.Equal(t, "u2", fromDM.Invoker().ID)

	assert.Empty(t, (&Interaction{}).Invoker().ID)
}

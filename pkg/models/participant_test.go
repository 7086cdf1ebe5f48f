package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPositionType(t *testing.T) {
	assert.True(t, ValidPositionType(PositionHost))
	assert.True(t, ValidPositionType(PositionCohost))
	assert.True(t, ValidPositionType(PositionRegular))

	// The gaps and everything past Regular are reserved, not accepted.
	assert.False(t, ValidPositionType(PositionType(5)))
	assert.False(t, ValidPositionType(PositionType(30)))
	assert.False(t, ValidPositionType(PositionType(-1)))
}

func TestIsPlaceholder(t *testing.T) {
	uid := "u-1"
	real := Participant{UserID: &uid, PositionType: PositionRegular}
	assert.False(t, real.IsPlaceholder())

	// A placeholder is a nil-user row; its tier is whatever slot it was
	// given, not a marker.
	slot := Participant{Mention: "Reserved", PositionType: PositionRegular}
	assert.True(t, slot.IsPlaceholder())
}

package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yaohuangguan/orion-chat/internal/wire"
)

func TestEmptyTrackerReportsOffline(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.IsOnline("u1"))
	assert.Empty(t, tr.Users())
}

func TestApplyRecordsSnapshot(t *testing.T) {
	tr := NewTracker()
	tr.Apply(wire.PresenceSnapshot{
		"u1": {DisplayName: "Alpha", Email: "a@example.com"},
		"u2": {DisplayName: "Beta"},
	})

	assert.True(t, tr.IsOnline("u1"))
	assert.True(t, tr.IsOnline("u2"))
	assert.False(t, tr.IsOnline("u3"))

	users := tr.Users()
	assert.Equal(t, []User{
		{ID: "u1", Name: "Alpha", Email: "a@example.com"},
		{ID: "u2", Name: "Beta"},
	}, users)
}

func TestApplyReplacesRatherThanMerges(t *testing.T) {
	tr := NewTracker()
	tr.Apply(wire.PresenceSnapshot{
		"u1": {DisplayName: "Alpha"},
		"u2": {DisplayName: "Beta"},
	})
	tr.Apply(wire.PresenceSnapshot{
		"u2": {DisplayName: "Beta"},
		"u3": {DisplayName: "Gamma"},
	})

	// u1 was dropped by the newer snapshot and must read as offline.
	assert.False(t, tr.IsOnline("u1"))
	assert.True(t, tr.IsOnline("u2"))
	assert.True(t, tr.IsOnline("u3"))
}

func TestApplyEmptySnapshotClearsEveryone(t *testing.T) {
	tr := NewTracker()
	tr.Apply(wire.PresenceSnapshot{"u1": {DisplayName: "Alpha"}})
	tr.Apply(wire.PresenceSnapshot{})

	assert.False(t, tr.IsOnline("u1"))
	assert.Empty(t, tr.Users())
}

func TestUsersSortedByNameThenID(t *testing.T) {
	tr := NewTracker()
	tr.Apply(wire.PresenceSnapshot{
		"u3": {DisplayName: "Beta"},
		"u1": {DisplayName: "Beta"},
		"u2": {DisplayName: "Alpha"},
	})

	users := tr.Users()
	assert.Equal(t, "u2", users[0].ID)
	assert.Equal(t, "u1", users[1].ID)
	assert.Equal(t, "u3", users[2].ID)
}
